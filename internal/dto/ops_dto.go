package dto

// BatchRequest optionally overrides the configured batch size of an ops run.
type BatchRequest struct {
	BatchSize int `json:"batch_size" validate:"omitempty,min=1,max=1000"`
}

// DispatchSummary reports one ProcessDue run.
type DispatchSummary struct {
	Selected  int `json:"selected"`
	Sent      int `json:"sent"`
	Enqueued  int `json:"enqueued"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

// DrainSummary reports one delivery queue drain.
type DrainSummary struct {
	Reclaimed int `json:"reclaimed"`
	Selected  int `json:"selected"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Deferred  int `json:"deferred"`
}

package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-reminders/internal/dto"
)

type countingDispatcher struct {
	calls     atomic.Int32
	batchSize atomic.Int32
	err       error
}

func (d *countingDispatcher) ProcessDue(ctx context.Context, now time.Time, batchSize int) (dto.DispatchSummary, error) {
	d.calls.Add(1)
	d.batchSize.Store(int32(batchSize))
	if _, ok := ctx.Deadline(); !ok {
		return dto.DispatchSummary{}, errors.New("missing deadline")
	}
	return dto.DispatchSummary{}, d.err
}

type countingDelivery struct {
	calls atomic.Int32
}

func (d *countingDelivery) Drain(ctx context.Context, now time.Time, batchSize int) (dto.DrainSummary, error) {
	d.calls.Add(1)
	return dto.DrainSummary{}, nil
}

func (d *countingDelivery) List(context.Context, string, int, int) (dto.DeliveryJobListResponse, error) {
	return dto.DeliveryJobListResponse{}, nil
}

func TestRunJobsInvokeServices(t *testing.T) {
	dispatcher := &countingDispatcher{err: errors.New("store down")}
	delivery := &countingDelivery{}
	s := New(dispatcher, delivery, Config{DispatchBatch: 25}, zerolog.New(io.Discard))

	s.RunDispatch()
	s.RunDelivery()

	require.Equal(t, int32(1), dispatcher.calls.Load())
	require.Equal(t, int32(25), dispatcher.batchSize.Load())
	require.Equal(t, int32(1), delivery.calls.Load())
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := New(&countingDispatcher{}, &countingDelivery{}, Config{DispatchSpec: "not a spec"}, zerolog.New(io.Discard))
	require.Error(t, s.Start())
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	dispatcher := &countingDispatcher{}
	delivery := &countingDelivery{}
	s := New(dispatcher, delivery, Config{DispatchSpec: "@every 1s", DeliverySpec: "@every 1s"}, zerolog.New(io.Discard))

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return dispatcher.calls.Load() > 0 && delivery.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

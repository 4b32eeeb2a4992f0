package events

import (
	"context"
	"testing"

	"github.com/simaogato/bundlemarket-backend/internal/domain"
	"github.com/simaogato/bundlemarket-backend/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_SubscriberReceivesEmittedEvents(t *testing.T) {
	bus := NewBus(logger.Nop())
	receiver, err := bus.Subscribe()
	require.NoError(t, err)
	defer receiver.Close()

	listed := domain.NewEvent(domain.EventItemListed)
	listed.ItemID = 1
	bus.Emit(context.Background(), listed)

	got, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, listed.ID, got.ID)
	assert.Equal(t, domain.ItemID(1), got.ItemID)
}

func TestBus_EmitAfterCloseIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := NewBus(&logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	require.NoError(t, bus.Close())

	bus.Emit(context.Background(), domain.NewEvent(domain.EventBuyerPaid))

	warned := logs.FilterMessage("could not publish event").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, string(domain.EventBuyerPaid), warned[0].ContextMap()["type"])
}

func TestMulti_ForwardsToEverySink(t *testing.T) {
	first, second := new(Recorder), new(Recorder)
	sink := Multi{first, nil, second, LogSink{Logger: logger.Nop()}}

	sink.Emit(context.Background(), domain.NewEvent(domain.EventBundleCreated))
	failed := domain.NewEvent(domain.EventRefundFailed)
	failed.Reason = "wallet closed"
	sink.Emit(context.Background(), failed)

	assert.Len(t, first.Events(), 2)
	assert.Len(t, second.Events(), 2)
	assert.Len(t, first.OfType(domain.EventRefundFailed), 1)
	assert.True(t, first.OfType(domain.EventRefundFailed)[0].IsFailure())
}

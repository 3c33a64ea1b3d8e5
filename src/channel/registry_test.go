package channel

import (
	"testing"

	"finlink/src/logger"
	"finlink/src/models"

	"github.com/stretchr/testify/assert"
)

// -----------------------------------------------------------------------------

func testRegistry() *Registry {
	return NewRegistry(logger.NewLogger(nil, "registry-test"))
}

func envelope(topic string) models.MUpdateEnvelope {
	return models.MUpdateEnvelope{Type: topic, Timestamp: "2026-01-01T00:00:00Z"}
}

// -----------------------------------------------------------------------------

func TestRegistryDispatchRoutesByTopic(t *testing.T) {
	r := testRegistry()

	var portfolio, market int
	r.Subscribe(models.TopicPortfolio, func(models.MUpdateEnvelope) { portfolio++ })
	r.Subscribe(models.TopicMarket, func(models.MUpdateEnvelope) { market++ })

	r.Dispatch(envelope(models.TopicPortfolio))
	r.Dispatch(envelope(models.TopicPortfolio))
	r.Dispatch(envelope(models.TopicMarket))

	assert.Equal(t, 2, portfolio)
	assert.Equal(t, 1, market)
}

// -----------------------------------------------------------------------------

func TestRegistryUnsubscribeRemovesExactlyOne(t *testing.T) {
	r := testRegistry()

	var first, second int
	unsubFirst := r.Subscribe(models.TopicAccounts, func(models.MUpdateEnvelope) { first++ })
	r.Subscribe(models.TopicAccounts, func(models.MUpdateEnvelope) { second++ })

	unsubFirst()
	r.Dispatch(envelope(models.TopicAccounts))

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, r.Count(models.TopicAccounts))
}

// -----------------------------------------------------------------------------

func TestRegistryUnsubscribeIsIdempotent(t *testing.T) {
	r := testRegistry()

	var calls int
	unsubFirst := r.Subscribe(models.TopicCredit, func(models.MUpdateEnvelope) {})
	r.Subscribe(models.TopicCredit, func(models.MUpdateEnvelope) { calls++ })

	unsubFirst()
	unsubFirst()

	r.Dispatch(envelope(models.TopicCredit))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, r.Count(models.TopicCredit))
}

// -----------------------------------------------------------------------------

func TestRegistryPrunesEmptyTopics(t *testing.T) {
	r := testRegistry()

	unsub := r.Subscribe(models.TopicTransactions, func(models.MUpdateEnvelope) {})
	assert.Equal(t, 1, r.TopicCount())

	unsub()
	assert.Equal(t, 0, r.TopicCount())
}

// -----------------------------------------------------------------------------

func TestRegistryPanickingSubscriberIsIsolated(t *testing.T) {
	r := testRegistry()

	var survived int
	r.Subscribe(models.TopicMarket, func(models.MUpdateEnvelope) { panic("boom") })
	r.Subscribe(models.TopicMarket, func(models.MUpdateEnvelope) { survived++ })

	assert.NotPanics(t, func() {
		r.Dispatch(envelope(models.TopicMarket))
	})
	assert.Equal(t, 1, survived)
}

// -----------------------------------------------------------------------------

func TestRegistryUnsubscribeDuringDispatch(t *testing.T) {
	r := testRegistry()

	var unsub func()
	var after int
	unsub = r.Subscribe(models.TopicPortfolio, func(models.MUpdateEnvelope) { unsub() })
	r.Subscribe(models.TopicPortfolio, func(models.MUpdateEnvelope) { after++ })

	r.Dispatch(envelope(models.TopicPortfolio))
	assert.Equal(t, 1, after)

	// The self-removing subscriber is gone on the next round
	r.Dispatch(envelope(models.TopicPortfolio))
	assert.Equal(t, 2, after)
	assert.Equal(t, 1, r.Count(models.TopicPortfolio))
}

// -----------------------------------------------------------------------------

func TestRegistryClearDropsEverything(t *testing.T) {
	r := testRegistry()

	var calls int
	r.Subscribe(models.TopicMarket, func(models.MUpdateEnvelope) { calls++ })
	r.Subscribe(models.TopicCredit, func(models.MUpdateEnvelope) { calls++ })

	r.Clear()
	r.Dispatch(envelope(models.TopicMarket))
	r.Dispatch(envelope(models.TopicCredit))

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, r.TopicCount())
}

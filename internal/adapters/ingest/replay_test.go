package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/aptosarb/arbcore/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recording = `{"Kind":0,"BlockStart":{"BlockNumber":1,"TimestampMs":1000}}
{"Kind":1,"MarketUpdate":{"PoolID":"p1","Pair":{"AssetX":"APT","AssetY":"USDC"},"Exchange":"DexA","Model":{"Kind":0,"CPMM":{"ReserveX":"1000","ReserveY":"8000","FeeBps":30}}}}
{"Kind":2,"BlockEnd":{"BlockNumber":1}}
`

func TestReplay_EmitsEveryMessageInOrder(t *testing.T) {
	r := NewReplay(strings.NewReader(recording), 0)
	out := make(chan scheduler.DetectorMessage, 10)

	err := r.Run(context.Background(), out)
	require.NoError(t, err)
	close(out)

	var kinds []scheduler.MessageKind
	for msg := range out {
		kinds = append(kinds, msg.Kind)
	}
	assert.Equal(t, []scheduler.MessageKind{scheduler.KindBlockStart, scheduler.KindMarketUpdate, scheduler.KindBlockEnd}, kinds)
	assert.Equal(t, 3, r.MessagesEmitted())
}

func TestReplay_SkipsBlankLines(t *testing.T) {
	r := NewReplay(strings.NewReader("\n"+recording+"\n"), 0)
	out := make(chan scheduler.DetectorMessage, 10)

	require.NoError(t, r.Run(context.Background(), out))
	assert.Equal(t, 3, r.MessagesEmitted())
}

func TestReplay_ContextCancellationStopsEarly(t *testing.T) {
	r := NewReplay(strings.NewReader(recording), 0)
	out := make(chan scheduler.DetectorMessage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplay_InvalidJSONReturnsError(t *testing.T) {
	r := NewReplay(strings.NewReader("not json\n"), 0)
	out := make(chan scheduler.DetectorMessage, 1)
	err := r.Run(context.Background(), out)
	assert.Error(t, err)
}

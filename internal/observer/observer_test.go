package observer

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nhle/mailtask/internal/host"
	"github.com/nhle/mailtask/internal/logging"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	for range 5 {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

const page = `<html><body><div role="main">
<div class="G-tF"></div>
<div class="adn" data-message-id="m1"><table class="cf gJ"><tr><td>A</td></tr></table></div>
</div></body></html>`

func TestObserverReinjectsAfterReplace(t *testing.T) {
	root, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	live := host.NewLive(root, "https://mail.example/", nil)

	o := New(live, 10*time.Millisecond, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	first := <-o.Results()
	assert.Equal(t, 2, first.Added)

	next, err := html.Parse(strings.NewReader(page))
	require.NoError(t, err)
	live.Replace(next, "https://mail.example/")

	select {
	case msg := <-o.Results():
		assert.Equal(t, 2, msg.Added)
	case <-time.After(2 * time.Second):
		t.Fatal("no injection after replace")
	}

	var count int
	live.Read(func(doc *goquery.Document) {
		count = doc.Find("[" + TriggerAttr + "]").Length()
	})
	assert.Equal(t, 2, count)
}

func TestPublishKeepsNewestPass(t *testing.T) {
	o := New(nil, time.Millisecond, logging.Discard())
	size := cap(o.resultCh)
	for i := range size + 3 {
		o.publish(InjectedMsg{Added: i})
	}

	require.Len(t, o.resultCh, size)
	var last InjectedMsg
	for range size {
		last = <-o.Results()
	}
	assert.Equal(t, size+2, last.Added)
}

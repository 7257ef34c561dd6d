package transcript

import (
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsOrder(t *testing.T) {
	rec := New()
	info := log.New(rec.Writer("INFO"), "", 0)
	errLog := log.New(rec.Writer("ERROR"), "", 0)

	info.Printf("1. account 138****5678 started")
	errLog.Println("login failed")
	info.Printf("account 138****5678 finished")

	events := rec.Replay()
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Seq)
		assert.False(t, e.Time.IsZero())
	}
	assert.Equal(t, "ERROR", events[1].Level)
	assert.Equal(t, "login failed", events[1].Message)
	assert.Equal(t,
		"1. account 138****5678 started  \nlogin failed  \naccount 138****5678 finished",
		Render(events))
}

func TestReplayIsACopy(t *testing.T) {
	rec := New()
	rec.Record("INFO", "a")

	events := rec.Replay()
	events[0].Message = "mutated"

	assert.Equal(t, "a", rec.Replay()[0].Message)
}

func TestDrainEmptiesBuffer(t *testing.T) {
	rec := New()
	for i := 0; i < 5; i++ {
		rec.Record("INFO", fmt.Sprintf("line %d", i))
	}

	drained := rec.Drain()
	assert.Len(t, drained, 5)
	assert.Zero(t, rec.Len())
	assert.Empty(t, rec.Drain())
	assert.Equal(t, "", Render(nil))
}

func TestEraseThenRecordStartsClean(t *testing.T) {
	rec := New()
	rec.Record("INFO", "first run")
	rec.Erase()
	rec.Record("INFO", "second run")

	events := rec.Replay()
	require.Len(t, events, 1)
	assert.Equal(t, "second run", events[0].Message)
}

package llmcall

import (
	"errors"
	"sync"
	"testing"

	"github.com/jackzampolin/vellum/internal/providers"
)

func TestFromChatResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		call := FromChatResult(&providers.ChatResult{
			Provider:         "groq",
			ModelUsed:        "llama",
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
			Success:          true,
		}, nil, RecordOptions{Batch: 2, Attempt: 1, Pages: []int{5, 6}, Temperature: 0.05})

		if call.ID == "" {
			t.Error("expected generated ID")
		}
		if !call.Success || call.TotalTokens != 15 || call.Batch != 2 || len(call.Pages) != 2 {
			t.Errorf("call = %+v", call)
		}
	})

	t.Run("error without result", func(t *testing.T) {
		err := &providers.APIError{Provider: "groq", Message: "slow down", Kind: providers.ErrRateLimited}
		call := FromChatResult(nil, err, RecordOptions{})
		if call.Success {
			t.Error("expected failed call")
		}
		if call.ErrorType != "rate_limited" {
			t.Errorf("ErrorType = %q, want rate_limited", call.ErrorType)
		}
	})

	t.Run("parse error on successful transport", func(t *testing.T) {
		call := FromChatResult(&providers.ChatResult{Success: true, TotalTokens: 9}, errors.New("bad json"), RecordOptions{})
		if call.Success || call.Error != "bad json" || call.TotalTokens != 9 {
			t.Errorf("call = %+v", call)
		}
	})
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	var wg sync.WaitGroup
	for b := 3; b >= 0; b-- {
		wg.Add(1)
		go func(batch int) {
			defer wg.Done()
			r.Record(&providers.ChatResult{Success: true, PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}, nil,
				RecordOptions{Batch: batch, Attempt: 1})
		}(b)
	}
	wg.Wait()
	r.Record(nil, &providers.APIError{Kind: providers.ErrTimeout}, RecordOptions{Batch: 0, Attempt: 0})

	calls := r.Calls()
	if len(calls) != 5 {
		t.Fatalf("len(Calls) = %d, want 5", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		prev, cur := calls[i-1], calls[i]
		if prev.Batch > cur.Batch || (prev.Batch == cur.Batch && prev.Attempt > cur.Attempt) {
			t.Errorf("calls not ordered at %d: %d/%d then %d/%d", i, prev.Batch, prev.Attempt, cur.Batch, cur.Attempt)
		}
	}

	s := r.Summary()
	if s.Calls != 5 || s.Failures != 1 {
		t.Errorf("Summary = %+v", s)
	}
	if s.Usage.TotalTokens != 480 || s.Usage.PromptTokens != 400 {
		t.Errorf("Usage = %+v", s.Usage)
	}
	if s.ByError["timeout"] != 1 {
		t.Errorf("ByError = %v", s.ByError)
	}
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Record(&providers.ChatResult{}, nil, RecordOptions{})
	if got := r.Calls(); got != nil {
		t.Errorf("nil recorder Calls() = %v", got)
	}
	if s := r.Summary(); s.Calls != 0 {
		t.Errorf("nil recorder Summary() = %+v", s)
	}
}

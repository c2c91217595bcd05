package stream

// Handlers is the table of optional callbacks invoked for each record kind.
// A nil callback means the record kind is ignored.
type Handlers struct {
	OnStart    func(gameID string)
	OnChunk    func(content string)
	OnProgress func(step string)
	OnComplete func(nextPrompts []string)
	OnError    func(err error)
}

// Dispatch invokes the callback in h that matches rec.
//
// Non-terminal records whose payload field is empty are ignored. A complete
// record without next_prompts still completes, with no options; an error
// record without a message still fails, with a generic message.
//
// Dispatch never panics: a panicking callback is recovered and reported as a
// *HandlerError so the caller can fail the exchange instead of the decode loop.
func Dispatch(rec Record, h Handlers) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &HandlerError{Record: rec.Type(), Value: v}
		}
	}()

	switch r := rec.(type) {
	case *StartRecord:
		if h.OnStart != nil && r.GameID != "" {
			h.OnStart(r.GameID)
		}
	case *ChunkRecord:
		if h.OnChunk != nil && r.Content != "" {
			h.OnChunk(r.Content)
		}
	case *ProgressRecord:
		if h.OnProgress != nil && r.Step != "" {
			h.OnProgress(r.Step)
		}
	case *CompleteRecord:
		if h.OnComplete != nil {
			prompts := r.NextPrompts
			if prompts == nil {
				prompts = []string{}
			}
			h.OnComplete(prompts)
		}
	case *ErrorRecord:
		if h.OnError != nil {
			msg := r.Message
			if msg == "" {
				msg = "server reported an error"
			}
			h.OnError(&StreamError{Message: msg})
		}
	}

	return nil
}

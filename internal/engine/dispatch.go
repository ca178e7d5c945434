package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	// UnsupportedFileNote is the note recorded for files no reader handles.
	UnsupportedFileNote = "Cannot explore this file, the file extension is not supported"
	// RepeatVisitWarning is appended to the note of a file explored before.
	RepeatVisitWarning = "\nThis file has already been explored - Important: You should stop exploring the same files again!"
)

// dispatch hands every pending request to its reader agent and leaves the
// notes in st.Acquired, in request order. Unsupported files get a fixed note
// and do not count as explorations. Reader errors abort the run.
func (x *Explorer) dispatch(ctx context.Context, st *State) error {
	st.ExplorationCounter++

	// NextRoute never sends an empty queue here; a direct call still counts the round.
	if len(st.Pending) == 0 {
		return nil
	}

	requests := st.Pending
	readers := make([]Reader, len(requests))
	for i, req := range requests {
		readers[i] = x.readers.Resolve(req.Path)
	}

	var prefetched []string
	if x.opts.DispatchConcurrency > 1 {
		var err error
		if prefetched, err = x.readParallel(ctx, st, requests, readers); err != nil {
			return err
		}
	}

	acquired := make([]FileNote, 0, len(requests))
	for i, req := range requests {
		if readers[i] == nil {
			n := FileNote{Path: req.Path, Note: UnsupportedFileNote}
			acquired = append(acquired, n)
			x.hooks.OnFileExplored(ctx, st, n, false)
			continue
		}

		var text string
		if prefetched != nil {
			text = prefetched[i]
		} else {
			var err error
			if text, err = x.readOne(ctx, st, readers[i], req); err != nil {
				return err
			}
		}

		note := "Prompt: " + req.SubPrompt + "\n" + text
		if st.explored(req.Path) {
			note += RepeatVisitWarning
		} else {
			st.ExploredFiles = append(st.ExploredFiles, req.Path)
		}
		st.NumExplorations++

		n := FileNote{Path: req.Path, Note: note}
		acquired = append(acquired, n)
		x.hooks.OnFileExplored(ctx, st, n, true)
	}

	st.Acquired = acquired
	st.Pending = nil
	return nil
}

func (x *Explorer) readOne(ctx context.Context, st *State, r Reader, req FileRequest) (string, error) {
	text, err := r.Read(ctx, req.SubPrompt, req.Path, st)
	if err != nil {
		return "", WrapWithContext(err, st, StepDispatch, "read_file", req.Path)
	}
	return text, nil
}

// readParallel runs the supported readers of one round with bounded
// concurrency. Readers only read st, which is not modified until all return.
func (x *Explorer) readParallel(ctx context.Context, st *State, requests []FileRequest, readers []Reader) ([]string, error) {
	out := make([]string, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.DispatchConcurrency)
	for i := range requests {
		if readers[i] == nil {
			continue
		}
		g.Go(func() error {
			text, err := x.readOne(gctx, st, readers[i], requests[i])
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

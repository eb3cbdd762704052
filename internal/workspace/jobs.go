package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/prompt"
	"github.com/starford/quire/internal/sse"
)

// Job is a running prompt.
type Job struct {
	ID      string    `json:"id"`
	Prompt  string    `json:"prompt"`
	Start   int       `json:"start"`
	End     int       `json:"end"`
	Started time.Time `json:"started"`
}

type job struct {
	Job
	region int
	gen    int
	cancel context.CancelFunc
}

// PromptResult is published when a job ends.
type PromptResult struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Prompt    string `json:"prompt"`
	Error     string `json:"error,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Prompts lists the prompt names available for triggers.
func (w *Workspace) Prompts() ([]string, error) {
	if w.prompts == nil {
		return []string{}, nil
	}
	return w.prompts.Names()
}

// RunPrompt starts the @#name trigger under pos. The trigger is locked while
// the model works; the formatted reply (or an inline error) is inserted
// after it when the job ends. It returns the job ID.
func (w *Workspace) RunPrompt(pos int) (string, Snapshot, error) {
	var id string
	snap, err := w.withDoc(func(d *editor.Document) error {
		if w.prompts == nil {
			return fmt.Errorf("workspace: prompts disabled: %w", apperr.ErrNotFound)
		}
		if w.readOnly {
			return apperr.ErrReadOnly
		}
		names, err := w.prompts.Names()
		if err != nil {
			return err
		}
		text := d.Text()
		trig, ok := prompt.TriggerAt(text, pos, names)
		if !ok {
			return fmt.Errorf("workspace: no prompt trigger at %d: %w", pos, apperr.ErrNotFound)
		}
		region, ok := d.MarkPending(trig.Start, trig.End)
		if !ok {
			return fmt.Errorf("workspace: trigger already running: %w", apperr.ErrConflict)
		}

		ctx, cancel := context.WithTimeout(w.runCtx, w.cfg.PromptTimeout)
		j := &job{
			Job: Job{
				ID:      uuid.NewString(),
				Prompt:  trig.Name,
				Start:   trig.Start,
				End:     trig.End,
				Started: time.Now(),
			},
			region: region,
			gen:    w.gen,
			cancel: cancel,
		}
		w.jobs[j.ID] = j
		id = j.ID

		userText := prompt.ExtractUserText(text, trig.Start)
		w.logger.Info("workspace: prompt started",
			slog.String("job", j.ID),
			slog.String("prompt", trig.Name),
			slog.String("path", w.path),
		)
		go w.runJob(ctx, j.ID, trig.Name, userText)
		return nil
	})
	return id, snap, err
}

// CancelPrompt stops a running job and unlocks its trigger.
func (w *Workspace) CancelPrompt(id string) (Snapshot, error) {
	return w.edit(func() error {
		j, ok := w.jobs[id]
		if !ok {
			return fmt.Errorf("workspace: job %s: %w", id, apperr.ErrNotFound)
		}
		w.endJob(j)
		w.publishResult(PromptResult{ID: id, Path: w.path, Prompt: j.Prompt, Cancelled: true})
		return nil
	})
}

func (w *Workspace) runJob(ctx context.Context, id, name, userText string) {
	resp, err := w.prompts.Process(ctx, name, userText)
	var insert string
	if err != nil {
		insert = prompt.FormatResponse(prompt.Message(name, err))
	} else {
		insert = prompt.FormatResponse(resp)
	}
	_ = w.do(func() { w.finishJob(id, insert, err) })
}

func (w *Workspace) finishJob(id, insert string, procErr error) {
	j, ok := w.jobs[id]
	if !ok {
		return // cancelled
	}
	delete(w.jobs, id)
	j.cancel()
	if w.doc == nil || j.gen != w.gen {
		return
	}
	res := PromptResult{ID: id, Path: w.path, Prompt: j.Prompt}
	if procErr != nil {
		res.Error = procErr.Error()
		w.logger.Warn("workspace: prompt failed",
			slog.String("job", id),
			slog.String("prompt", j.Prompt),
			slog.String("error", procErr.Error()),
		)
	}
	if !w.doc.ResolvePending(j.region, insert) {
		res.Error = "trigger region lost"
	}
	w.publishResult(res)
	w.publishDocument()
}

func (w *Workspace) endJob(j *job) {
	j.cancel()
	if w.doc != nil && j.gen == w.gen {
		w.doc.CancelPending(j.region)
	}
	delete(w.jobs, j.ID)
}

func (w *Workspace) cancelJobs() {
	for _, j := range w.jobs {
		w.endJob(j)
	}
}

func (w *Workspace) jobList() []Job {
	live := make(map[int]editor.Region)
	if w.doc != nil {
		for _, r := range w.doc.Pending() {
			live[r.ID] = r
		}
	}
	out := make([]Job, 0, len(w.jobs))
	for _, j := range w.jobs {
		item := j.Job
		if r, ok := live[j.region]; ok && j.gen == w.gen {
			item.Start, item.End = r.Start, r.End
		}
		out = append(out, item)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Started.Before(out[b].Started) })
	return out
}

func (w *Workspace) publishResult(r PromptResult) {
	w.events.Publish(sse.Event{Type: sse.TypePromptDone, Data: r})
}

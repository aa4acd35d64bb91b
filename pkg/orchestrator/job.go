// Package orchestrator runs the two-pass hybrid labeling job: a tagger pass
// and a captioner pass run as child processes over isolated copies of the
// input images, followed by a single merge into the input directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/merge"
	"github.com/menta2k/image-labeler/pkg/progress"
	"github.com/menta2k/image-labeler/pkg/types"
)

// LockFile is created in the input directory while labels are written
const LockFile = ".labeler.lock"

// ErrLocked is returned when another job holds the input directory lock
var ErrLocked = errors.New("input directory is locked by another labeling job")

// Pass describes one child annotator
type Pass struct {
	// Name prefixes relayed log lines and failure reports, e.g. "Tagger"
	Name string
	// Label names the pass in relabeled progress, e.g. "Tagging"
	Label string
	// Command builds the invocation for a scratch directory
	Command func(dir string) Command
}

// Options configures a Job
type Options struct {
	InputDir  string
	Images    []string
	Tagger    Pass
	Captioner Pass
	Merge     *merge.Engine
	Launcher  Launcher
	Progress  *progress.Writer
	Logger    *slog.Logger
	// ScratchRoot is where the job directory is created; empty uses os.TempDir
	ScratchRoot string
}

// Result summarizes a completed job
type Result struct {
	ID          string
	Images      int
	Written     int
	Merged      int
	TagsOnly    int
	CaptionOnly int
	Empty       int
	Failed      int
}

// Job is a single hybrid run. A Job is not reusable.
type Job struct {
	id       string
	opts     Options
	logger   *slog.Logger
	machine  *machine
	scratch  string
	passDirs [2]string
}

// NewJob validates opts and returns a job in the INIT state
func NewJob(opts Options) (*Job, error) {
	if opts.InputDir == "" {
		return nil, errors.New("input directory is required")
	}
	if len(opts.Images) == 0 {
		return nil, &types.EmptyInputError{Dir: opts.InputDir}
	}
	if opts.Tagger.Command == nil || opts.Captioner.Command == nil {
		return nil, errors.New("both passes need a command")
	}
	if opts.Merge == nil {
		return nil, errors.New("merge engine is required")
	}
	if opts.Launcher == nil {
		opts.Launcher = ExecLauncher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tagger.Name == "" {
		opts.Tagger.Name = "Tagger"
	}
	if opts.Captioner.Name == "" {
		opts.Captioner.Name = "Captioner"
	}

	id := uuid.NewString()
	return &Job{
		id:      id,
		opts:    opts,
		logger:  opts.Logger.With("component", "hybrid", "job", id),
		machine: newMachine(),
	}, nil
}

// ID returns the job identifier
func (j *Job) ID() string { return j.id }

// State returns the current lifecycle state
func (j *Job) State() State { return j.machine.current }

// History returns every state the job has been in, in order
func (j *Job) History() []State {
	return append([]State(nil), j.machine.history...)
}

// Run executes the job to completion. Scratch directories are removed on
// every return path.
func (j *Job) Run(ctx context.Context) (Result, error) {
	res := Result{ID: j.id, Images: len(j.opts.Images)}
	defer j.cleanup()

	err := j.run(ctx, &res)
	if err != nil {
		if !j.machine.current.IsTerminal() {
			_ = j.machine.transition(StateFailed)
		}
		j.logger.Debug("hybrid job failed", "state", j.machine.current, "history", j.machine.history)
		return res, err
	}
	return res, nil
}

func (j *Job) run(ctx context.Context, res *Result) error {
	j.logger.Info("Starting Hybrid 2-Pass Captioning", "images", len(j.opts.Images))

	if err := j.machine.transition(StateStaging); err != nil {
		return err
	}
	if err := j.stage(); err != nil {
		return err
	}

	passes := []struct {
		pass          Pass
		running, done State
	}{
		{j.opts.Tagger, StatePass1Running, StatePass1Done},
		{j.opts.Captioner, StatePass2Running, StatePass2Done},
	}
	outputs := make([]map[string]types.AnnotationResult, len(passes))
	for i, p := range passes {
		if err := j.machine.transition(p.running); err != nil {
			return err
		}
		label := progress.PassLabel(i+1, len(passes), p.pass.Label)
		j.logger.Info(fmt.Sprintf("[Hybrid %s] Running %s...", label, strings.ToLower(p.pass.Name)), "pass", i+1)
		if err := j.runPass(ctx, i+1, p.pass, label, j.passDirs[i]); err != nil {
			return err
		}
		out, err := collect(j.passDirs[i], i == 0)
		if err != nil {
			return fmt.Errorf("collect %s output: %w", p.pass.Name, err)
		}
		outputs[i] = out
		if err := j.machine.transition(p.done); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.machine.transition(StateMerging); err != nil {
		return err
	}
	if err := j.merge(outputs[0], outputs[1], res); err != nil {
		return err
	}
	return j.machine.transition(StateDone)
}

// stage copies every input image into one scratch directory per pass
func (j *Job) stage() error {
	root, err := os.MkdirTemp(j.opts.ScratchRoot, "labeler-"+j.id+"-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	j.scratch = root
	for i, name := range []string{"tagger_output", "captioner_output"} {
		dir := filepath.Join(root, name)
		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("create scratch directory: %w", err)
		}
		j.passDirs[i] = dir
	}
	stems := make(map[string]string, len(j.opts.Images))
	for _, img := range j.opts.Images {
		base := filepath.Base(img)
		if prev, dup := stems[utils.Stem(img)]; dup {
			j.logger.Warn("images share a label file, the later one wins", "first", prev, "second", base)
		}
		stems[utils.Stem(img)] = base
		for _, dir := range j.passDirs {
			if err := utils.CopyFile(img, filepath.Join(dir, base)); err != nil {
				return fmt.Errorf("stage %s: %w", base, err)
			}
		}
	}
	j.logger.Debug("staged images", "scratch", root, "images", len(j.opts.Images))
	return nil
}

// runPass launches one child and relays its output until it exits
func (j *Job) runPass(ctx context.Context, n int, pass Pass, label, dir string) error {
	logger := j.logger.With("pass", n)
	proc, err := j.opts.Launcher.Start(ctx, pass.Command(dir))
	if err != nil {
		return fmt.Errorf("%s: %w", pass.Name, err)
	}

	prefix := "[" + pass.Name + "] "
	for line := range proc.Lines() {
		if ev, ok := progress.Parse(line); ok {
			if j.opts.Progress != nil {
				if err := j.opts.Progress.Write(progress.Relabel(ev, label)); err != nil {
					logger.Warn("relay progress failed", "error", err)
				}
			}
			continue
		}
		if text := strings.TrimSpace(line); text != "" {
			logger.Info(prefix + text)
		}
	}

	exit := proc.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if exit.Code != 0 || exit.Err != nil {
		code := exit.Code
		if code == 0 {
			code = -1
		}
		return &types.ChildProcessError{Pass: pass.Name, ExitCode: code, Stderr: strings.TrimSpace(exit.Stderr)}
	}
	// Warnings from a successful child, such as skipped images
	for _, line := range strings.Split(strings.TrimSpace(exit.Stderr), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			logger.Warn(prefix + line)
		}
	}
	return nil
}

// merge writes one label per input image into the input directory
func (j *Job) merge(tagOut, capOut map[string]types.AnnotationResult, res *Result) error {
	lock := flock.New(filepath.Join(j.opts.InputDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock input directory: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	j.logger.Info("[Hybrid] Merging outputs...")
	emitter := progress.NewEmitter(j.opts.Progress, len(j.opts.Images), progress.StatusMerging)
	for _, img := range j.opts.Images {
		if _, err := emitter.Next("[Merging] " + filepath.Base(img)); err != nil {
			j.logger.Warn("relay progress failed", "error", err)
		}
		stem := utils.Stem(img)
		tagged := tagOut[stem]
		captioned := capOut[stem]
		hasTags := len(tagged.Tags) > 0
		hasCaption := captioned.Caption != ""

		switch {
		case hasTags && hasCaption:
			res.Merged++
		case hasTags:
			res.TagsOnly++
		case hasCaption:
			res.CaptionOnly++
		default:
			res.Empty++
		}

		label := j.opts.Merge.MergeResults(tagged, captioned)
		if err := utils.WriteLabel(utils.LabelPath(img), label); err != nil {
			res.Failed++
			j.logger.Warn("write label failed", "file", filepath.Base(img), "error", err)
			continue
		}
		res.Written++
	}
	j.logger.Info("Hybrid captioning complete",
		"written", res.Written,
		"merged", res.Merged,
		"tags_only", res.TagsOnly,
		"caption_only", res.CaptionOnly,
		"empty", res.Empty,
		"failed", res.Failed,
	)
	return nil
}

// collect reads the labels a pass left in dir as per-stem results
func collect(dir string, tagger bool) (map[string]types.AnnotationResult, error) {
	labels, err := utils.ReadLabels(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.AnnotationResult, len(labels))
	for stem, text := range labels {
		r := types.AnnotationResult{Stem: stem}
		if tagger {
			r.Tags = merge.ParseTags(text)
		} else {
			r.Caption = text
		}
		out[stem] = r
	}
	return out, nil
}

func (j *Job) cleanup() {
	if j.scratch == "" {
		return
	}
	if err := os.RemoveAll(j.scratch); err != nil {
		j.logger.Warn("remove scratch directory failed", "path", j.scratch, "error", err)
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mhpenta/imageloop"
	"github.com/mhpenta/imageloop/internal/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// fakeProvider is an ImageProvider that returns a fixed image or error.
type fakeProvider struct {
	err     error
	prompts []string
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, images []imageloop.InputImage, opts *imageloop.GenerateOptions) (*imageloop.GenerateResult, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return nil, p.err
	}
	return &imageloop.GenerateResult{
		Images: []imageloop.GeneratedImage{{Data: pngBytes, MIMEType: "image/png"}},
	}, nil
}

func (p *fakeProvider) Models() []imageloop.ModelInfo {
	return []imageloop.ModelInfo{{Name: "fake-image", Provider: "fake", APIModelName: "fake-image-v1"}}
}

func (p *fakeProvider) Close() error { return nil }

type scoreEvaluator []float64

func (s *scoreEvaluator) Evaluate(ctx context.Context, artifact *imageloop.Artifact, prompt string) (imageloop.Evaluation, error) {
	score := (*s)[0]
	if len(*s) > 1 {
		*s = (*s)[1:]
	}
	return imageloop.Evaluation{Score: score, Feedback: "more contrast"}, nil
}

type suffixPrompter struct{}

func (suffixPrompter) Refine(ctx context.Context, prev, feedback string) (string, error) {
	return prev + ", " + feedback, nil
}

type testEnv struct {
	fs       afero.Fs
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	provider *fakeProvider
	scores   scoreEvaluator
	gotCfg   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Chdir(home)

	return &testEnv{
		fs:       afero.NewMemMapFs(),
		out:      &bytes.Buffer{},
		errOut:   &bytes.Buffer{},
		provider: &fakeProvider{},
		scores:   scoreEvaluator{97},
	}
}

func (e *testEnv) execute(args ...string) error {
	factory := func(ctx context.Context, cfg *config.Config, session *imageloop.SessionConfig, store imageloop.Storage, logger *slog.Logger) (*Backend, error) {
		e.gotCfg = cfg
		opts := []imageloop.ManagerOption{imageloop.WithLogger(logger)}
		if store != nil {
			opts = append(opts, imageloop.WithStorage(store))
		}
		manager, err := imageloop.NewManager(e.provider, opts...)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Generator: manager,
			Evaluator: &e.scores,
			Prompter:  suffixPrompter{},
			Close:     manager.Close,
		}, nil
	}

	cmd := NewRootCommand(
		WithOutput(e.out, e.errOut),
		WithFs(e.fs),
		WithBackendFactory(factory),
	)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRun_ThresholdReached(t *testing.T) {
	env := newTestEnv(t)

	err := env.execute("run", "a red bicycle", "--session", "/cfg/session.yaml", "--artifacts", "/out")
	require.NoError(t, err)

	var report imageloop.LoopReport
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &report))

	assert.Equal(t, imageloop.StopReasonThreshold, report.StopReason)
	assert.Equal(t, 97.0, report.FinalScore)
	require.Len(t, report.History, 1)
	assert.Equal(t, "a red bicycle", report.History[0].QueryPrompt)
	require.NotNil(t, report.BestImage)
	assert.True(t, strings.HasPrefix(*report.BestImage, "/out"), "best image %q not under /out", *report.BestImage)

	saved, err := afero.ReadFile(env.fs, *report.BestImage)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, saved)

	store := imageloop.NewFileConfigStore(env.fs, "/cfg/session.yaml")
	session, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.SessionID, session.LastSessionID)
	assert.Equal(t, imageloop.DefaultPrompterName, session.PrompterName)
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	env := newTestEnv(t)
	env.scores = scoreEvaluator{10, 20, 30, 40, 50}

	err := env.execute("run", "a red bicycle",
		"--session", "/cfg/session.yaml",
		"--max-iterations", "2",
		"--threshold", "99",
		"--quality", "high",
		"--output", "yaml",
	)
	require.NoError(t, err)

	require.NotNil(t, env.gotCfg)
	assert.Equal(t, 2, env.gotCfg.Loop.MaxIterations)
	assert.Equal(t, 99.0, env.gotCfg.Loop.ScoreThreshold)
	assert.Equal(t, "high", env.gotCfg.Generation.Quality)

	var report imageloop.LoopReport
	require.NoError(t, yaml.Unmarshal(env.out.Bytes(), &report))
	assert.Equal(t, imageloop.StopReasonExhausted, report.StopReason)
	assert.Len(t, report.History, 2)
	assert.Equal(t, 20.0, report.FinalScore)
	assert.Equal(t, []string{"a red bicycle", "a red bicycle, more contrast"}, env.provider.prompts)
}

func TestRun_FatalFirstRound(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("model unavailable")

	err := env.execute("run", "a red bicycle", "--session", "/cfg/session.yaml")
	require.ErrorIs(t, err, ErrRunFailed)

	var report imageloop.LoopReport
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &report))
	assert.Equal(t, imageloop.StopReasonFatal, report.StopReason)
	assert.Equal(t, imageloop.NoScore, report.FinalScore)
	assert.Nil(t, report.BestImage)
	require.Len(t, report.History, 1)
	assert.Contains(t, report.History[0].Error, "model unavailable")
}

func TestRun_RequiresPromptOrRef(t *testing.T) {
	env := newTestEnv(t)

	err := env.execute("run", "--session", "/cfg/session.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt or at least one --ref")
}

func TestRun_InvalidOptionsFailBeforeAnyRound(t *testing.T) {
	env := newTestEnv(t)

	err := env.execute("run", "logo", "--session", "/cfg/session.yaml", "--background", "transparent", "--format", "jpeg")
	require.Error(t, err)
	assert.Empty(t, env.provider.prompts)
}

func TestRun_BadOutputFormat(t *testing.T) {
	env := newTestEnv(t)

	err := env.execute("run", "logo", "--session", "/cfg/session.yaml", "--output", "xml")
	require.Error(t, err)
	assert.Empty(t, env.provider.prompts)
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	err := env.execute("init", "--session", "/cfg/session.yaml", "--name", "Poster Prompter", "--prompter-model", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "/cfg/session.yaml\n", env.out.String())

	store := imageloop.NewFileConfigStore(env.fs, "/cfg/session.yaml")
	session, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Poster Prompter", session.PrompterName)
	assert.Equal(t, imageloop.DefaultPrompterInstructions, session.PrompterInstructions)
	assert.Equal(t, "gpt-4o", session.PrompterModel)

	// A second init keeps the existing file.
	err = env.execute("init", "--session", "/cfg/session.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	err = env.execute("init", "--session", "/cfg/session.yaml", "--force", "--name", "Other")
	require.NoError(t, err)
	session, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Other", session.PrompterName)
}

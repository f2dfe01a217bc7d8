package pipeline

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsetbot/internal/config"
	"git.home.luguber.info/inful/docsetbot/internal/events"
	"git.home.luguber.info/inful/docsetbot/internal/forge"
)

func readPin(t *testing.T, e *env) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.dir, config.DefaultPinFile))
	require.NoError(t, err)
	return string(data)
}

func TestCheckDetectsNewRelease(t *testing.T) {
	e := newEnv(t)
	e.writePin("# tracked by docsetbot\nseaborn==0.12.2  # docs\n")
	p := e.pipeline(nil)

	res, err := p.Check(t.Context(), false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Written)
	assert.Equal(t, "0.12.2", res.Current)
	assert.Equal(t, "0.13.2", res.Latest)
	assert.Equal(t, "v0.13.2", res.Release.Tag)
	assert.Contains(t, readPin(t, e), "seaborn==0.12.2")

	res, err = p.Check(t.Context(), true)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, "# tracked by docsetbot\nseaborn==0.13.2  # docs\n", readPin(t, e))
	assert.Equal(t, 2, countKind(e.events.Kinds(), events.KindRelease))

	res, err = p.Check(t.Context(), true)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.False(t, res.Written)
}

func TestCheckWithoutRelease(t *testing.T) {
	e := newEnv(t)
	e.fake.SetRelease(testSource, "")
	_, err := e.pipeline(nil).Check(t.Context(), true)
	require.ErrorIs(t, err, forge.ErrNoRelease)
	assert.Equal(t, "seaborn==0.13.2\n", readPin(t, e))
}

func TestCheckForgeOutage(t *testing.T) {
	e := newEnv(t)
	e.fake.FailNext("GET /repos/mwaskom/seaborn/releases/latest", http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway)
	_, err := e.pipeline(nil).Check(t.Context(), false)
	require.Error(t, err)
}

func TestCandidateTags(t *testing.T) {
	e := newEnv(t)
	p := e.pipeline(nil)
	src := forge.MustParseRepo(testSource)

	rc := &runContext{ctx: t.Context(), version: "0.13.2"}
	assert.Equal(t, []string{"v0.13.2", "0.13.2"}, p.candidateTags(rc, src))

	rc.version = "0.12.0"
	assert.Equal(t, []string{"v0.12.0", "0.12.0"}, p.candidateTags(rc, src))

	e.fake.SetRelease(testSource, "0.12.0")
	assert.Equal(t, []string{"0.12.0", "v0.12.0"}, p.candidateTags(rc, src))
}

package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oeeckhoutte/dvc/internal/project"
	"github.com/oeeckhoutte/dvc/internal/stage"
	"github.com/oeeckhoutte/dvc/internal/testutil"
)

// pipelineFiles is a two-stage pipeline: A copies source.txt to data.csv,
// B copies data.csv to model.bin.
func pipelineFiles() map[string]string {
	return map[string]string{
		"source.txt": "raw data\n",
		"a.stage.hcl": `
cmd = "cp source.txt data.csv"

dep { path = "source.txt" }

out { path = "data.csv" }
`,
		"b.stage.hcl": `
cmd = "cp data.csv model.bin"

dep { path = "data.csv" }

out { path = "model.bin" }
`,
	}
}

func relPaths(stages []*stage.Stage) []string {
	var ids []string
	for _, s := range stages {
		ids = append(ids, s.RelPath())
	}
	return ids
}

func TestReproduce(t *testing.T) {
	h := testutil.NewProject(t, pipelineFiles())
	p := h.Project

	t.Run("stale pipeline rebuilds producers first", func(t *testing.T) {
		reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.stage.hcl", "b.stage.hcl"}, relPaths(reproduced))

		content, err := os.ReadFile(h.Path("model.bin"))
		require.NoError(t, err)
		assert.Equal(t, "raw data\n", string(content))
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
		require.NoError(t, err)
		assert.Empty(t, reproduced)
	})

	t.Run("only the stale consumer reruns", func(t *testing.T) {
		require.NoError(t, os.Remove(h.Path("model.bin")))

		reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"b.stage.hcl"}, relPaths(reproduced))
	})

	t.Run("force reruns everything", func(t *testing.T) {
		reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.stage.hcl", "b.stage.hcl"}, relPaths(reproduced))
	})

	t.Run("unknown target fails with StageNotFoundError", func(t *testing.T) {
		_, err := p.Reproduce(h.Ctx, h.Path("nope.stage.hcl"), true, false)
		var notFound *project.StageNotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestReproduceOverwritesCheckedOutOutputs(t *testing.T) {
	// Checkout materializes outputs read-only. A later reproduction must
	// still be able to rewrite them: stale outputs are removed before the
	// command runs. noclobber redirections fail on any pre-existing file,
	// read-only or not, so this holds even when the test runs as root.
	h := testutil.NewProject(t, map[string]string{
		"source.txt": "raw data\n",
		"a.stage.hcl": `
cmd = "set -C; cat source.txt > data.csv"

dep { path = "source.txt" }

out { path = "data.csv" }
`,
		"b.stage.hcl": `
cmd = "set -C; cat data.csv > model.bin"

dep { path = "data.csv" }

out { path = "model.bin" }
`,
	})
	p := h.Project

	_, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
	require.NoError(t, err)

	require.NoError(t, p.Checkout(h.Ctx))
	info, err := os.Stat(h.Path("model.bin"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o444), info.Mode().Perm(), "checkout leaves outputs read-only")

	h.WriteFile(t, "source.txt", "fresh data, new size\n")

	reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.stage.hcl", "b.stage.hcl"}, relPaths(reproduced))

	content, err := os.ReadFile(h.Path("model.bin"))
	require.NoError(t, err)
	assert.Equal(t, "fresh data, new size\n", string(content))
}

func TestReproduceNonRecursive(t *testing.T) {
	h := testutil.NewProject(t, pipelineFiles())
	p := h.Project

	// data.csv does not exist yet, so B's command itself would fail; make it.
	_, err := p.Reproduce(h.Ctx, h.Path("a.stage.hcl"), false, false)
	require.NoError(t, err)

	reproduced, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.stage.hcl"}, relPaths(reproduced),
		"non-recursive evaluates only the target")

	reproduced, err = p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), false, false)
	require.NoError(t, err)
	assert.Empty(t, reproduced)
}

func TestReproducePartialFailure(t *testing.T) {
	files := pipelineFiles()
	files["c.stage.hcl"] = `
cmd = "false"

dep { path = "model.bin" }

out { path = "final.txt" }
`
	h := testutil.NewProject(t, files)
	p := h.Project

	_, err := p.Reproduce(h.Ctx, h.Path("c.stage.hcl"), true, false)
	require.Error(t, err)

	var reproErr *project.ReproductionError
	require.ErrorAs(t, err, &reproErr)
	assert.Equal(t, "c.stage.hcl", reproErr.Path)
	assert.Error(t, reproErr.Unwrap())

	// A and B were reproduced and persisted before the failure; no rollback.
	for _, name := range []string{"a.stage.hcl", "b.stage.hcl"} {
		s, err := stage.Load(p.Root, h.Path(name))
		require.NoError(t, err)
		assert.NotEmpty(t, s.Outs[0].Checksum, "%s was persisted", name)
	}
	s, err := stage.Load(p.Root, h.Path("c.stage.hcl"))
	require.NoError(t, err)
	assert.Empty(t, s.Outs[0].Checksum, "the failing stage was not persisted")
}

func TestUsedCache(t *testing.T) {
	h := testutil.NewProject(t, map[string]string{
		"one.txt":   "same content",
		"two.txt":   "same content",
		"three.txt": "different content",
	})
	p := h.Project

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		_, err := p.Add(h.Ctx, h.Path(name))
		require.NoError(t, err)
	}

	used, err := p.UsedCache(h.Ctx)
	require.NoError(t, err)

	// one.txt and two.txt share a checksum; the set is deduplicated.
	assert.Len(t, used, 2)
	seen := make(map[string]struct{})
	for _, sum := range used {
		seen[sum] = struct{}{}
	}
	assert.Len(t, seen, 2)

	t.Run("uncached outputs are excluded", func(t *testing.T) {
		h.WriteFile(t, "report.stage.hcl", `
cmd = "cp three.txt report.txt"

out {
  path  = "report.txt"
  cache = false
}
`)
		_, err := p.Reproduce(h.Ctx, h.Path("report.stage.hcl"), false, false)
		require.NoError(t, err)

		after, err := p.UsedCache(h.Ctx)
		require.NoError(t, err)
		assert.Len(t, after, 2, "cache=false output adds nothing")
	})

	t.Run("recomputed set is stable while the stage set is unchanged", func(t *testing.T) {
		again, err := p.UsedCache(h.Ctx)
		require.NoError(t, err)
		assert.Equal(t, used, again)
	})
}

func TestGC(t *testing.T) {
	h := testutil.NewProject(t, map[string]string{"data.csv": "1,2,3\n"})
	p := h.Project

	_, err := p.Add(h.Ctx, h.Path("data.csv"))
	require.NoError(t, err)
	used, err := p.UsedCache(h.Ctx)
	require.NoError(t, err)
	require.Len(t, used, 1)

	// Plant unreferenced entries: a read-only file and a directory tree.
	junkFile := p.Cache.Path("00000000000000000000000000000001")
	require.NoError(t, os.WriteFile(junkFile, []byte("junk"), 0o644))
	require.NoError(t, os.Chmod(junkFile, 0o444))

	junkDir := p.Cache.Path("00000000000000000000000000000002")
	require.NoError(t, os.MkdirAll(filepath.Join(junkDir, "sub"), 0o755))
	nested := filepath.Join(junkDir, "sub", "x.bin")
	require.NoError(t, os.WriteFile(nested, []byte("junk"), 0o644))
	require.NoError(t, os.Chmod(nested, 0o444))

	require.NoError(t, p.GC(h.Ctx))

	all, err := p.Cache.All()
	require.NoError(t, err)
	assert.Equal(t, used, all, "exactly the used set survives")
	assert.NoFileExists(t, junkFile)
	assert.NoDirExists(t, junkDir)
	assert.Contains(t, h.Logs.String(), "was removed")
}

func TestPipelines(t *testing.T) {
	files := pipelineFiles()
	files["standalone.txt"] = "alone"
	h := testutil.NewProject(t, files)
	p := h.Project

	_, err := p.Add(h.Ctx, h.Path("standalone.txt"))
	require.NoError(t, err)

	pipelines, err := p.Pipelines(h.Ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	for _, pl := range pipelines {
		assert.Same(t, p, pl.Project())
	}

	// Exact partition: every stage in exactly one pipeline.
	seen := make(map[string]int)
	for _, pl := range pipelines {
		for _, s := range pl.Stages() {
			seen[s.RelPath()]++
		}
	}
	assert.Len(t, seen, 3)
	for id, n := range seen {
		assert.Equal(t, 1, n, "stage %s in %d pipelines", id, n)
	}
}

func TestAddRemoveCheckout(t *testing.T) {
	h := testutil.NewProject(t, map[string]string{"data.csv": "1,2,3\n"})
	p := h.Project

	s, err := p.Add(h.Ctx, h.Path("data.csv"))
	require.NoError(t, err)
	assert.Equal(t, "data.csv.stage.hcl", s.RelPath())
	assert.Empty(t, s.Cmd)
	require.Len(t, s.Outs, 1)
	assert.NotEmpty(t, s.Outs[0].Checksum)
	assert.True(t, p.Cache.Has(s.Outs[0].Checksum))

	ignore, err := os.ReadFile(h.Path(".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), "/data.csv")

	t.Run("checkout restores a deleted output", func(t *testing.T) {
		require.NoError(t, os.Remove(h.Path("data.csv")))
		require.NoError(t, p.Checkout(h.Ctx))

		content, err := os.ReadFile(h.Path("data.csv"))
		require.NoError(t, err)
		assert.Equal(t, "1,2,3\n", string(content))
	})

	t.Run("remove deletes the stage and its output", func(t *testing.T) {
		removed, err := p.Remove(h.Ctx, h.Path("data.csv"))
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.NoFileExists(t, h.Path("data.csv.stage.hcl"))
		assert.NoFileExists(t, h.Path("data.csv"))
	})

	t.Run("removing an untracked path fails", func(t *testing.T) {
		_, err := p.Remove(h.Ctx, h.Path("data.csv"))
		var notFound *project.StageNotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestRun(t *testing.T) {
	h := testutil.NewProject(t, map[string]string{"words.txt": "hello\nworld\n"})
	p := h.Project

	s, err := p.Run(h.Ctx, project.RunOptions{
		Cmd:  "wc -l < words.txt > count.txt",
		Deps: []string{"words.txt"},
		Outs: []string{"count.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "count.txt.stage.hcl", s.RelPath(), "stage file derived from the first output")
	assert.FileExists(t, h.Path("count.txt"))
	assert.NotEmpty(t, s.Outs[0].Checksum)

	t.Run("no-exec persists without running", func(t *testing.T) {
		s, err := p.Run(h.Ctx, project.RunOptions{
			Cmd:    "cp count.txt copy.txt",
			Deps:   []string{"count.txt"},
			Outs:   []string{"copy.txt"},
			NoExec: true,
		})
		require.NoError(t, err)
		assert.FileExists(t, s.Path)
		assert.NoFileExists(t, h.Path("copy.txt"))
		assert.Empty(t, s.Outs[0].Checksum)
	})

	t.Run("a stage file name is required without outputs", func(t *testing.T) {
		_, err := p.Run(h.Ctx, project.RunOptions{Cmd: "true"})
		require.Error(t, err)
	})

	t.Run("failing command surfaces the error", func(t *testing.T) {
		_, err := p.Run(h.Ctx, project.RunOptions{
			Cmd:   "false",
			Outs:  []string{"never.txt"},
			Fname: "never.stage.hcl",
		})
		require.Error(t, err)
		assert.NoFileExists(t, h.Path("never.stage.hcl"), "failed run is not persisted")
	})
}

func TestSync(t *testing.T) {
	h := testutil.NewProject(t, pipelineFiles())
	p := h.Project
	p.Config.RemoteURL = t.TempDir()

	_, err := p.Reproduce(h.Ctx, h.Path("b.stage.hcl"), true, false)
	require.NoError(t, err)

	used, err := p.UsedCache(h.Ctx)
	require.NoError(t, err)
	require.Len(t, used, 2)

	require.NoError(t, p.Push(h.Ctx, 4))

	t.Run("status sees everything in sync after push", func(t *testing.T) {
		statuses, err := p.Status(h.Ctx, 4)
		require.NoError(t, err)
		require.Len(t, statuses, len(used), "status covers exactly the used set")
		for sum, st := range statuses {
			assert.Equal(t, "in sync", st.String(), "entry %s", sum)
		}
	})

	t.Run("pull restores the cache and the working tree", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(p.Cache.Dir()))
		require.NoError(t, os.Remove(h.Path("model.bin")))

		require.NoError(t, p.Pull(h.Ctx, 4))

		for _, sum := range used {
			assert.True(t, p.Cache.Has(sum))
		}
		content, err := os.ReadFile(h.Path("model.bin"))
		require.NoError(t, err)
		assert.Equal(t, "raw data\n", string(content))
	})

	t.Run("no configured remote fails cleanly", func(t *testing.T) {
		p.Config.RemoteURL = ""
		require.Error(t, p.Push(h.Ctx, 1))
	})
}

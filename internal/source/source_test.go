package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

const jsonSnapshot = `{
  "id": "snap-json",
  "commit_sha": "abc123",
  "nodes": [
    {"id": "a", "label": "a", "kind": "internal", "position": {"x": 1, "y": 0, "z": 2}, "language": "go"},
    {"id": "b", "kind": "third_party"},
    {"id": "a"}
  ],
  "edges": [
    {"source": "a", "target": "b", "weight": 3},
    {"source": "a", "target": "zzz"}
  ]
}`

const yamlSnapshot = `
id: snap-yaml
label: release
nodes:
  - id: core
    module_path: src/core
    position: {x: 4, y: 0, z: -4}
    metrics:
      afferent_coupling: 7
      is_hot_zone: true
      hot_zone_severity: warning
  - id: util
edges:
  - id: core-util
    source: core
    target: util
    imports: [format]
`

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"a.json", FormatJSON, false},
		{"dir/b.YAML", FormatYAML, false},
		{"c.yml", FormatYAML, false},
		{"d.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	snap, rep, err := Decode(strings.NewReader(jsonSnapshot), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "snap-json", snap.ID)
	assert.Equal(t, []string{"a", "b"}, snap.NodeIDs())
	assert.Equal(t, geom.V(1, 0, 2), snap.Nodes[0].Position)
	assert.True(t, snap.Nodes[1].IsThirdParty())
	assert.Equal(t, "a->b", snap.Edges[0].ID)
	assert.Equal(t, []string{"a"}, rep.DuplicateNodes)
	assert.Equal(t, []string{"a->zzz"}, rep.DanglingEdges)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestDecodeYAML(t *testing.T) {
	snap, _, err := Decode(strings.NewReader(yamlSnapshot), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "release", snap.Label)
	require.Len(t, snap.Nodes, 2)
	core := snap.Nodes[0]
	assert.Equal(t, "src/core", core.ModulePath)
	assert.Equal(t, geom.V(4, 0, -4), core.Position)
	assert.Equal(t, 7, core.Metrics.AfferentCoupling)
	assert.Equal(t, graph.SeverityWarning, core.Metrics.HotZoneSeverity)
	assert.Equal(t, graph.KindInternal, snap.Nodes[1].Kind)
	assert.Equal(t, []string{"format"}, snap.Edges[0].Imports)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode(strings.NewReader("{"), FormatJSON)
	assert.Error(t, err)

	_, _, err = Decode(strings.NewReader("{}"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlSnapshot), 0o644))

	src := NewFileSource(path)
	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-yaml", snap.ID)
	assert.Equal(t, "file:"+path, src.Name())

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Fetch(context.Background())
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// S3
// ---------------------------------------------------------------------------

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	pages   int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

// ListObjectsV2 returns one object per page to exercise pagination.
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if start < len(keys) {
		out.Contents = []types.Object{{Key: aws.String(keys[start])}}
	}
	if start+1 < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[start+1])
	}
	return out, nil
}

func TestS3SourceListAndFetch(t *testing.T) {
	fake := newFakeS3()
	fake.objects["replay/0001.json"] = []byte(jsonSnapshot)
	fake.objects["replay/0002.yaml"] = []byte(yamlSnapshot)
	fake.objects["replay/readme.md"] = []byte("ignored")
	fake.objects["other/0003.json"] = []byte(jsonSnapshot)

	src := newS3Source(fake, "graphs", "replay/")
	keys, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"replay/0001.json", "replay/0002.yaml"}, keys)
	assert.Equal(t, 3, fake.pages)

	latest, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-yaml", latest.ID)

	first, err := src.WithKey("replay/0001.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-json", first.ID)

	_, err = src.Get(context.Background(), "replay/missing.json")
	assert.Error(t, err)
}

func TestS3SourceEmptyPrefix(t *testing.T) {
	src := newS3Source(newFakeS3(), "graphs", "none/")
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestS3SourceExport(t *testing.T) {
	fake := newFakeS3()
	src := newS3Source(fake, "graphs", "layouts")

	key, err := src.Export(context.Background(), &graph.Snapshot{
		ID:    "snap-1",
		Nodes: []graph.Node{{ID: "a", Position: geom.V(1, 2, 3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "layouts/snap-1.json", key)

	got, err := src.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, geom.V(1, 2, 3), got.Nodes[0].Position)
}

func TestNewS3SourceRequiresBucket(t *testing.T) {
	_, err := NewS3Source(context.Background(), S3Config{})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Watcher
// ---------------------------------------------------------------------------

type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) handle(_ context.Context, snap *graph.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, snap.ID)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func TestWatcherReplaysExistingInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002.json"), []byte(`{"id":"second"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001.json"), []byte(`{"id":"first"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	c := &collector{}
	w := NewWatcher(dir, c.handle, 20*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, []string{"first", "second"}, c.snapshot())
	assert.Equal(t, int64(2), w.Status().Loaded)
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := NewWatcher(dir, c.handle, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "0003.json"), []byte(`{"id":"live"}`), 0o644))

	require.Eventually(t, func() bool {
		return len(c.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"live"}, c.snapshot())
}

func TestWatcherCountsDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{`), 0o644))

	c := &collector{}
	w := NewWatcher(dir, c.handle, 0)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Empty(t, c.snapshot())
	assert.Equal(t, int64(1), w.Status().DecodeErrs)
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope"), (&collector{}).handle, 0)
	assert.Error(t, w.Start(context.Background()))
}

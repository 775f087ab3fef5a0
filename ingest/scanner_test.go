package ingest

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facesys/models"
)

type memoryRegistrar struct {
	albums map[string]*models.Album
	images map[string]*models.Image
	order  []string
	failOn string
}

func newMemoryRegistrar() *memoryRegistrar {
	return &memoryRegistrar{
		albums: make(map[string]*models.Album),
		images: make(map[string]*models.Image),
	}
}

func (m *memoryRegistrar) EnsureAlbum(ctx context.Context, name string) (*models.Album, error) {
	if name == "" {
		name = models.DefaultAlbumName
	}
	if name == m.failOn {
		return nil, errors.New("albums table locked")
	}
	if album, ok := m.albums[name]; ok {
		return album, nil
	}
	album := &models.Album{ID: uint(len(m.albums) + 1), Name: name}
	m.albums[name] = album
	return album, nil
}

func (m *memoryRegistrar) EnsureImage(ctx context.Context, filePath string, takenAt *int64, location string, albumID *uint) (*models.Image, bool, error) {
	if filePath == m.failOn {
		return nil, false, errors.New("disk full")
	}
	if img, ok := m.images[filePath]; ok {
		return img, false, nil
	}
	img := &models.Image{ID: uint(len(m.images) + 1), FilePath: filePath, TakenAt: takenAt, Location: location, AlbumID: albumID}
	m.images[filePath] = img
	m.order = append(m.order, filePath)
	return img, true, nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if filepath.Ext(path) == ".png" {
		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2))))
	}
}

func TestIsMediaFile(t *testing.T) {
	assert.True(t, IsMediaFile("a.JPG"))
	assert.True(t, IsMediaFile("clip.mov"))
	assert.True(t, IsMediaFile("scan.bmp"))
	assert.False(t, IsMediaFile("notes.txt"))
	assert.False(t, IsMediaFile("noext"))
}

func TestImportRegistersMediaInNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img10.png", "img2.png", "img1.png", "clip.mp4", "notes.txt", "sub/deep.png"} {
		writeFile(t, filepath.Join(dir, name))
	}
	mtime := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "img1.png"), mtime, mtime))

	reg := newMemoryRegistrar()
	scanner := NewScanner(reg, nil)

	res, err := scanner.Import(context.Background(), []string{dir}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 4, Added: 4}, res)

	want := []string{"clip.mp4", "img1.png", "img2.png", "img10.png"}
	require.Len(t, reg.order, len(want))
	for i, name := range want {
		assert.Equal(t, filepath.Join(dir, name), reg.order[i])
	}

	img1 := reg.images[filepath.Join(dir, "img1.png")]
	require.NotNil(t, img1.TakenAt)
	assert.Equal(t, mtime.Unix(), *img1.TakenAt)
	assert.Empty(t, img1.Location)

	res, err = scanner.Import(context.Background(), []string{dir}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 4}, res)
}

func TestImportRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "nested", "b.jpg"))

	reg := newMemoryRegistrar()
	res, err := NewScanner(reg, nil).Import(context.Background(), []string{dir}, Options{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Contains(t, reg.images, filepath.Join(dir, "nested", "b.jpg"))
}

func TestImportSkipsMissingFolderAndCountsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "b.png"))

	reg := newMemoryRegistrar()
	reg.failOn = filepath.Join(dir, "a.png")

	var seen []string
	res, err := NewScanner(reg, nil).Import(context.Background(),
		[]string{filepath.Join(dir, "missing"), dir},
		Options{OnFile: func(path string, added bool, err error) { seen = append(seen, filepath.Base(path)) }})
	require.NoError(t, err)

	assert.Equal(t, Result{Seen: 2, Added: 1, Failed: 1}, res)
	assert.Equal(t, []string{"a.png", "b.png"}, seen)
}

func TestImportStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := newMemoryRegistrar()
	res, err := NewScanner(reg, nil).Import(ctx, []string{dir}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Seen)
	assert.Empty(t, reg.images)
}

func TestImportAssignsAlbum(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "b.png"))

	reg := newMemoryRegistrar()
	scanner := NewScanner(reg, nil)

	_, err := scanner.Import(context.Background(), []string{dir}, Options{})
	require.NoError(t, err)
	_, err = scanner.Import(context.Background(), []string{other}, Options{Album: "Trips"})
	require.NoError(t, err)

	def := reg.albums[models.DefaultAlbumName]
	require.NotNil(t, def)
	a := reg.images[filepath.Join(dir, "a.png")]
	require.NotNil(t, a.AlbumID)
	assert.Equal(t, def.ID, *a.AlbumID)

	trips := reg.albums["Trips"]
	require.NotNil(t, trips)
	b := reg.images[filepath.Join(other, "b.png")]
	require.NotNil(t, b.AlbumID)
	assert.Equal(t, trips.ID, *b.AlbumID)
}

func TestImportFailsWhenAlbumUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"))

	reg := newMemoryRegistrar()
	reg.failOn = "Locked"
	res, err := NewScanner(reg, nil).Import(context.Background(), []string{dir}, Options{Album: "Locked"})
	assert.Error(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, reg.images)
}

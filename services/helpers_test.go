package services

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/camden-git/facesys/database"
	"github.com/camden-git/facesys/faces"
	"github.com/camden-git/facesys/repository"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

// boxDetector reports fixed boxes keyed by image width.
type boxDetector struct {
	byWidth map[int][]faces.RawDetection
}

func (d *boxDetector) Detect(img image.Image) ([]faces.RawDetection, error) {
	return d.byWidth[img.Bounds().Dx()], nil
}

// colorEmbedder embeds a face as the normalized color of its center pixel.
type colorEmbedder struct{}

func (colorEmbedder) Embed(face image.Image) (faces.Embedding, error) {
	b := face.Bounds()
	r, g, bl, _ := face.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	return faces.Embedding{float32(r>>8) / 255, float32(g>>8) / 255, float32(bl>>8) / 255}, nil
}

func conf(v float64) *float64 { return &v }

func testDetector() *boxDetector {
	return &boxDetector{byWidth: map[int][]faces.RawDetection{
		// one face
		100: {{Box: faces.BoundingBox{X1: 20, Y1: 20, X2: 80, Y2: 80}, Confidence: conf(0.93)}},
		// two faces side by side
		120: {
			{Box: faces.BoundingBox{X1: 5, Y1: 5, X2: 55, Y2: 55}, Confidence: conf(0.8)},
			{Box: faces.BoundingBox{X1: 65, Y1: 5, X2: 115, Y2: 55}, Confidence: conf(0.9)},
		},
	}}
}

type testEnv struct {
	svc   *FaceRecognitionService
	store *repository.Store
	db    *gorm.DB
	dir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLoader(t, func() (faces.Detector, faces.Embedder, error) {
		return testDetector(), colorEmbedder{}, nil
	})
}

func newTestEnvWithLoader(t *testing.T, loader faces.Loader) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() { _ = database.Close(db) })

	store := repository.NewStore(db)
	svc := NewFaceRecognitionService(store, faces.NewEngine(loader, nil), Options{SimilarityThreshold: 0.6})
	return &testEnv{svc: svc, store: store, db: db, dir: dir}
}

// solidImage builds a w x h image; faces in the right half use right, the rest left.
func solidImage(w, h int, left, right color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= w/2 {
				img.Set(x, y, right)
			} else {
				img.Set(x, y, left)
			}
		}
	}
	return img
}

func (e *testEnv) writeImage(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

// addImage writes an image file and registers it as unprocessed.
func (e *testEnv) addImage(t *testing.T, name string, img image.Image) uint {
	t.Helper()
	path := e.writeImage(t, name, img)
	rec, _, err := e.store.EnsureImage(context.Background(), path, nil, "", nil)
	require.NoError(t, err)
	return rec.ID
}

// failAfter registers a gorm callback that lets skip operations on table
// through and fails the n after them. op is "create" or "update".
func (e *testEnv) failAfter(t *testing.T, op, table string, skip, n int) {
	t.Helper()
	seen := 0
	fn := func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != table {
			return
		}
		seen++
		if seen > skip && n > 0 {
			n--
			tx.AddError(fmt.Errorf("injected %s failure on %s", op, table))
		}
	}
	name := "test:fail_" + op + "_" + table
	switch op {
	case "create":
		require.NoError(t, e.db.Callback().Create().Before("gorm:create").Register(name, fn))
	case "update":
		require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register(name, fn))
	default:
		t.Fatalf("unknown operation %s", op)
	}
}

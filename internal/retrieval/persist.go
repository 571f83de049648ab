package retrieval

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spacebio/biorag/internal/corpus"
)

// Artifact file names inside an index directory. All three are written and
// validated together — mixing artifacts from different builds is refused.
const (
	manifestFile   = "manifest.json"
	embeddingsFile = "embeddings.bin"
	chunksFile     = "chunks.json"
)

// ErrModelMismatch is returned by Open when the persisted artifacts were
// built with a different embedding model or dimension than the one currently
// configured. This is fatal: scores across models are not comparable.
var ErrModelMismatch = errors.New("retrieval: persisted index was built with a different embedding model")

// ErrMisaligned is returned by Open when the chunk list and the embedding
// matrix disagree in length. The two collections must stay positionally
// aligned; a mismatch means the artifacts are corrupt or mixed.
var ErrMisaligned = errors.New("retrieval: chunk list and embedding matrix are misaligned")

// manifest keys the persisted artifacts to the embedding model that produced
// them.
type manifest struct {
	// Model is the embedding model version used to build the index.
	Model string `json:"model"`
	// Dimension is the embedding vector length.
	Dimension int `json:"dimension"`
	// Count is the number of chunk/vector pairs.
	Count int `json:"count"`
}

// Save writes the index and its chunk list to dir as three artifacts:
// manifest.json, embeddings.bin (little-endian float32 matrix), and
// chunks.json. Every file handle is flushed and closed on all exit paths.
func Save(dir string, model string, idx *FlatIndex, store *corpus.Store) error {
	if idx.Len() != store.Len() {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrMisaligned, store.Len(), idx.Len())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("retrieval: create %s: %w", dir, err)
	}

	m := manifest{Model: model, Dimension: idx.Dimension(), Count: idx.Len()}
	if err := writeJSON(filepath.Join(dir, manifestFile), m); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, chunksFile), store.Chunks()); err != nil {
		return err
	}
	if err := writeMatrix(filepath.Join(dir, embeddingsFile), idx.vectors); err != nil {
		return err
	}
	return nil
}

// Open loads a persisted index directory and returns the reconstructed index
// and chunk store. model is the currently configured embedding model; a
// mismatch with the manifest fails with ErrModelMismatch. Length and
// dimension consistency is checked before anything is returned.
func Open(dir string, model string) (*FlatIndex, *corpus.Store, error) {
	var m manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &m); err != nil {
		return nil, nil, err
	}

	if m.Model != model {
		return nil, nil, fmt.Errorf("%w: artifacts built with %q, configured model is %q", ErrModelMismatch, m.Model, model)
	}
	if m.Dimension <= 0 {
		return nil, nil, fmt.Errorf("retrieval: manifest has invalid dimension %d", m.Dimension)
	}

	var chunks []corpus.Chunk
	if err := readJSON(filepath.Join(dir, chunksFile), &chunks); err != nil {
		return nil, nil, err
	}

	vectors, err := readMatrix(filepath.Join(dir, embeddingsFile), m.Count, m.Dimension)
	if err != nil {
		return nil, nil, err
	}

	if len(chunks) != m.Count || len(vectors) != m.Count {
		return nil, nil, fmt.Errorf("%w: manifest says %d, found %d chunks and %d vectors",
			ErrMisaligned, m.Count, len(chunks), len(vectors))
	}
	for i, c := range chunks {
		if c.ID != i {
			return nil, nil, fmt.Errorf("%w: chunk at position %d has ID %d", ErrMisaligned, i, c.ID)
		}
	}

	idx := &FlatIndex{dim: m.Dimension, vectors: vectors}
	return idx, corpus.NewStore(chunks), nil
}

// writeJSON marshals v to path, syncing before close.
func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("retrieval: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("retrieval: close %s: %w", path, cerr)
		}
	}()

	enc := json.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("retrieval: write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("retrieval: sync %s: %w", path, err)
	}
	return nil
}

// readJSON unmarshals path into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("retrieval: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("retrieval: parse %s: %w", path, err)
	}
	return nil
}

// writeMatrix writes vectors as a flat little-endian float32 stream.
func writeMatrix(path string, vectors [][]float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("retrieval: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("retrieval: close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for _, vec := range vectors {
		for _, val := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(val))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("retrieval: write %s: %w", path, err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("retrieval: flush %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("retrieval: sync %s: %w", path, err)
	}
	return nil
}

// readMatrix reads count*dim little-endian float32 values from path and
// verifies the file holds exactly that many.
func readMatrix(path string, count, dim int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read %s: %w", path, err)
	}

	want := count * dim * 4
	if len(data) != want {
		return nil, fmt.Errorf("%w: embedding matrix is %d bytes, expected %d (%d×%d float32)",
			ErrMisaligned, len(data), want, count, dim)
	}

	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}

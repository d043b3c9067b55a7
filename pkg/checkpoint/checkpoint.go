package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const checkpointVersion = 1

// State records the progress of one extraction run. A cell is marked done
// only after its part file has been written, so resuming skips exactly the
// work that is already on disk.
type State struct {
	Version   int    `json:"version"`
	RunName   string `json:"run_name"`
	BBox      string `json:"bbox"`
	NumSeg    int    `json:"num_seg"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`

	CompletedCells map[int]CellResult `json:"completed_cells"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CellResult summarizes one finished grid cell
type CellResult struct {
	Records     int       `json:"records"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists run state as JSON in the platform data directory
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a checkpoint store rooted in the platform data
// directory, or in dir if non-empty
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		var err error
		dir, err = dataDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewState initializes run state with no completed cells
func NewState(runName, bbox string, numSeg, startYear, endYear int) *State {
	now := time.Now().UTC()
	return &State{
		Version:        checkpointVersion,
		RunName:        runName,
		BBox:           bbox,
		NumSeg:         numSeg,
		StartYear:      startYear,
		EndYear:        endYear,
		CompletedCells: make(map[int]CellResult),
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkCell records a finished cell
func (s *State) MarkCell(cell, records int) {
	s.CompletedCells[cell] = CellResult{
		Records:     records,
		CompletedAt: time.Now().UTC(),
	}
	s.UpdatedAt = time.Now().UTC()
}

// IsCellDone reports whether a cell has already been fetched
func (s *State) IsCellDone(cell int) bool {
	_, done := s.CompletedCells[cell]
	return done
}

// Matches reports whether the state belongs to the same run parameters.
// Resuming with a different grid or date range would mis-assign cells.
func (s *State) Matches(bbox string, numSeg, startYear, endYear int) bool {
	return s.BBox == bbox && s.NumSeg == numSeg &&
		s.StartYear == startYear && s.EndYear == endYear
}

// path returns the checkpoint file for a run
func (st *Store) path(runName string) string {
	return filepath.Join(st.dir, runName+".checkpoint.json")
}

// Save writes the state atomically
func (st *Store) Save(state *State) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := st.path(state.RunName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads the state of a run
func (st *Store) Load(runName string) (*State, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path(runName))
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if state.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", state.Version)
	}
	if state.CompletedCells == nil {
		state.CompletedCells = make(map[int]CellResult)
	}

	return &state, nil
}

// Exists reports whether a checkpoint exists for a run
func (st *Store) Exists(runName string) bool {
	_, err := os.Stat(st.path(runName))
	return err == nil
}

// Delete removes a run's checkpoint, typically after a successful merge
func (st *Store) Delete(runName string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	err := os.Remove(st.path(runName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// dataDir returns the platform data directory for checkpoints
func dataDir() (string, error) {
	var base string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, "Library", "Application Support", "flickrgeo")
	case "windows":
		base = filepath.Join(os.Getenv("APPDATA"), "flickrgeo")
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			base = filepath.Join(xdgData, "flickrgeo")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".local", "share", "flickrgeo")
		}
	}

	return filepath.Join(base, "checkpoints"), nil
}

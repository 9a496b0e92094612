// Package store keeps a queryable log of training runs and their checkpoints in a
// SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"polarnet/nn"
)

// Run describes one training timeline.
type Run struct {
	ID            int64
	Timeline      int
	Topology      nn.Topology
	Activation    string
	LearningRate  float64
	SaveFrequency int
	Started       time.Time
}

// Record is one logged checkpoint.
type Record struct {
	RunID int64
	Index int
	Loss  float64
	Flat  []float64
}

// Weights decodes the weights of the record.
func (r *Record) Weights() (nn.Weights, error) {
	return nn.Unflatten(r.Flat)
}

// ErrUnfinished is returned by Final for a run whose training never reported its
// final weights.
var ErrUnfinished = errors.New("run has no final weights")

// Finished holds the weights a run ended with.
type Finished struct {
	RunID   int64
	Samples int
	Flat    []float64
}

// Weights decodes the final weights.
func (f *Finished) Weights() (nn.Weights, error) {
	return nn.Unflatten(f.Flat)
}

// Log is a checkpoint log backed by one SQLite database.
type Log struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory log.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint log")
	}
	// one connection: SQLite serializes writers anyway, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			timeline INTEGER NOT NULL,
			topology TEXT NOT NULL,
			activation TEXT NOT NULL,
			learning_rate REAL NOT NULL,
			save_frequency INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			idx INTEGER NOT NULL,
			loss REAL NOT NULL,
			flat TEXT NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create checkpoints table")
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS finals(
			run_id INTEGER PRIMARY KEY REFERENCES runs(id),
			ts REAL NOT NULL,
			samples INTEGER NOT NULL,
			flat TEXT NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create finals table")
	}
	return &Log{db: db}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// StartRun registers a timeline and returns its run id.
func (l *Log) StartRun(timeline int, topology nn.Topology, args nn.TrainArgs) (int64, error) {
	topo, err := json.Marshal([]int(topology))
	if err != nil {
		return 0, err
	}
	res, err := l.db.Exec(
		"INSERT INTO runs(ts, timeline, topology, activation, learning_rate, save_frequency) VALUES(?,?,?,?,?,?)",
		float64(time.Now().UnixMilli())/1000.0, timeline, string(topo), args.Activation.Name, args.LearningRate, args.SaveFrequency)
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}
	return res.LastInsertId()
}

// Record stores one checkpoint of run.
func (l *Log) Record(runID int64, c nn.Checkpoint) error {
	flat, err := json.Marshal(nn.Flatten(c.Weights))
	if err != nil {
		return err
	}
	_, err = l.db.Exec("INSERT INTO checkpoints(run_id, idx, loss, flat) VALUES(?,?,?,?)",
		runID, c.Index, nn.SquaredError(c.Errors), string(flat))
	return errors.Wrapf(err, "insert checkpoint %d of run %d", c.Index, runID)
}

// Finish stores the weights run ended with after training samples. Checkpoints are
// only taken every SaveFrequency samples, so this is the only row that holds the
// result of the trailing ones. Calling it again replaces the earlier result.
func (l *Log) Finish(runID int64, samples int, weights nn.Weights) error {
	flat, err := json.Marshal(nn.Flatten(weights))
	if err != nil {
		return err
	}
	_, err = l.db.Exec("INSERT OR REPLACE INTO finals(run_id, ts, samples, flat) VALUES(?,?,?,?)",
		runID, float64(time.Now().UnixMilli())/1000.0, samples, string(flat))
	return errors.Wrapf(err, "finish run %d", runID)
}

// Final returns the weights stored by Finish, or ErrUnfinished.
func (l *Log) Final(runID int64) (*Finished, error) {
	f := Finished{RunID: runID}
	var flat string
	err := l.db.QueryRow("SELECT samples, flat FROM finals WHERE run_id = ?", runID).Scan(&f.Samples, &flat)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrUnfinished, "run %d", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query final weights")
	}
	if err := json.Unmarshal([]byte(flat), &f.Flat); err != nil {
		return nil, errors.Wrapf(err, "run %d final weights", runID)
	}
	return &f, nil
}

// Run returns one run by id.
func (l *Log) Run(runID int64) (*Run, error) {
	runs, err := l.query("WHERE id = ?", runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Errorf("no run %d", runID)
	}
	return &runs[0], nil
}

// Runs lists every run, oldest first.
func (l *Log) Runs() ([]Run, error) {
	return l.query("")
}

func (l *Log) query(where string, args ...interface{}) ([]Run, error) {
	rows, err := l.db.Query("SELECT id, ts, timeline, topology, activation, learning_rate, save_frequency FROM runs "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ts float64
		var topo string
		if err := rows.Scan(&r.ID, &ts, &r.Timeline, &topo, &r.Activation, &r.LearningRate, &r.SaveFrequency); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if err := json.Unmarshal([]byte(topo), &r.Topology); err != nil {
			return nil, errors.Wrapf(err, "run %d topology", r.ID)
		}
		r.Started = time.UnixMilli(int64(ts * 1000))
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Checkpoints returns the checkpoints of run in training order.
func (l *Log) Checkpoints(runID int64) ([]Record, error) {
	rows, err := l.db.Query("SELECT idx, loss, flat FROM checkpoints WHERE run_id = ? ORDER BY idx", runID)
	if err != nil {
		return nil, errors.Wrap(err, "query checkpoints")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r := Record{RunID: runID}
		var flat string
		if err := rows.Scan(&r.Index, &r.Loss, &flat); err != nil {
			return nil, errors.Wrap(err, "scan checkpoint")
		}
		if err := json.Unmarshal([]byte(flat), &r.Flat); err != nil {
			return nil, errors.Wrapf(err, "checkpoint %d weights", r.Index)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Latest returns the last checkpoint of run.
func (l *Log) Latest(runID int64) (*Record, error) {
	r := Record{RunID: runID}
	var flat string
	err := l.db.QueryRow("SELECT idx, loss, flat FROM checkpoints WHERE run_id = ? ORDER BY idx DESC LIMIT 1", runID).
		Scan(&r.Index, &r.Loss, &flat)
	if err == sql.ErrNoRows {
		return nil, errors.Errorf("run %d has no checkpoints", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query latest checkpoint")
	}
	if err := json.Unmarshal([]byte(flat), &r.Flat); err != nil {
		return nil, errors.Wrapf(err, "checkpoint %d weights", r.Index)
	}
	return &r, nil
}

// Recorder logs the checkpoints of one run. Like stream.Forwarder it keeps the first
// error and drops later checkpoints.
type Recorder struct {
	log   *Log
	runID int64

	mu  sync.Mutex
	err error
}

// NewRecorder creates a recorder for runID.
func NewRecorder(l *Log, runID int64) *Recorder {
	return &Recorder{log: l, runID: runID}
}

// Observer returns the nn.Observer to hand to the training driver.
func (r *Recorder) Observer() nn.Observer {
	return func(c nn.Checkpoint) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.err == nil {
			r.err = r.log.Record(r.runID, c)
		}
	}
}

// Err returns the first error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

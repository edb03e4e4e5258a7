// Package bank serves the static question catalog: a read-only
// grade -> chapter -> topic -> sample-question hierarchy loaded once at
// startup and never mutated afterwards.
package bank

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thanhvu/examgen/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed data/*.json
var dataFS embed.FS

// Store is the catalog store. It is backed by SQLite (":memory:" by
// default) and is safe for concurrent readers; nothing writes after New.
type Store struct {
	db *sql.DB
}

// New opens the database at path, creates the schema and seeds it from the
// embedded catalog if it is empty.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grades (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		pos INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		grade_id TEXT NOT NULL,
		name TEXT NOT NULL,
		pos INTEGER NOT NULL,
		FOREIGN KEY (grade_id) REFERENCES grades(id)
	);

	CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		chapter_id TEXT NOT NULL,
		name TEXT NOT NULL,
		pos INTEGER NOT NULL,
		FOREIGN KEY (chapter_id) REFERENCES chapters(id)
	);

	CREATE TABLE IF NOT EXISTS bank_questions (
		id TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		text TEXT NOT NULL,
		pos INTEGER NOT NULL,
		PRIMARY KEY (topic_id, id),
		FOREIGN KEY (topic_id) REFERENCES topics(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// seed loads the embedded catalog into an empty database. A previously
// seeded database file is left untouched.
func (s *Store) seed() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM grades`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := dataFS.ReadFile("data/mathbank.json")
	if err != nil {
		return fmt.Errorf("read embedded catalog: %w", err)
	}
	var grades []model.Grade
	if err := json.Unmarshal(data, &grades); err != nil {
		return fmt.Errorf("parse embedded catalog: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for gi, g := range grades {
		if _, err := tx.Exec(`INSERT INTO grades (id, name, pos) VALUES (?, ?, ?)`, g.ID, g.Name, gi); err != nil {
			return err
		}
		for ci, c := range g.Chapters {
			if _, err := tx.Exec(`INSERT INTO chapters (id, grade_id, name, pos) VALUES (?, ?, ?, ?)`,
				c.ID, g.ID, c.Name, ci); err != nil {
				return err
			}
			for ti, tp := range c.Topics {
				if _, err := tx.Exec(`INSERT INTO topics (id, chapter_id, name, pos) VALUES (?, ?, ?, ?)`,
					tp.ID, c.ID, tp.Name, ti); err != nil {
					return err
				}
				for qi, q := range tp.Questions {
					if _, err := tx.Exec(`INSERT INTO bank_questions (id, topic_id, text, pos) VALUES (?, ?, ?, ?)`,
						q.ID, tp.ID, q.Text, qi); err != nil {
						return err
					}
				}
			}
		}
	}

	return tx.Commit()
}

// Catalog returns the full hierarchy in catalog order.
func (s *Store) Catalog() ([]model.Grade, error) {
	rows, err := s.db.Query(`SELECT id, name FROM grades ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []model.Grade
	for rows.Next() {
		var g model.Grade
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range grades {
		chapters, err := s.chapters(grades[i].ID)
		if err != nil {
			return nil, err
		}
		grades[i].Chapters = chapters
	}
	return grades, nil
}

func (s *Store) chapters(gradeID string) ([]model.Chapter, error) {
	rows, err := s.db.Query(`SELECT id, name FROM chapters WHERE grade_id = ? ORDER BY pos`, gradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []model.Chapter
	for rows.Next() {
		var c model.Chapter
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chapters {
		topics, err := s.topics(chapters[i].ID)
		if err != nil {
			return nil, err
		}
		chapters[i].Topics = topics
	}
	return chapters, nil
}

func (s *Store) topics(chapterID string) ([]model.Topic, error) {
	rows, err := s.db.Query(`SELECT id, name FROM topics WHERE chapter_id = ? ORDER BY pos`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range topics {
		questions, err := s.Questions(topics[i].ID)
		if err != nil {
			return nil, err
		}
		topics[i].Questions = questions
	}
	return topics, nil
}

// Questions returns the sample questions of a topic in catalog order.
func (s *Store) Questions(topicID string) ([]model.BankQuestion, error) {
	rows, err := s.db.Query(`SELECT id, text FROM bank_questions WHERE topic_id = ? ORDER BY pos`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BankQuestion
	for rows.Next() {
		var q model.BankQuestion
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Topic returns a topic with its questions.
func (s *Store) Topic(topicID string) (model.Topic, error) {
	var t model.Topic
	err := s.db.QueryRow(`SELECT id, name FROM topics WHERE id = ?`, topicID).Scan(&t.ID, &t.Name)
	if err != nil {
		return model.Topic{}, err
	}
	t.Questions, err = s.Questions(topicID)
	return t, err
}

// QuestionsByID resolves a selection of question IDs within a topic,
// preserving catalog order. Unknown IDs are ignored.
func (s *Store) QuestionsByID(topicID string, ids []string) ([]model.BankQuestion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, topicID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.Query(
		`SELECT id, text FROM bank_questions WHERE topic_id = ? AND id IN (`+placeholders+`) ORDER BY pos`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BankQuestion
	for rows.Next() {
		var q model.BankQuestion
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Lookup resolves the display names of a (grade, chapter, topic) path and
// verifies its containment.
func (s *Store) Lookup(gradeID, chapterID, topicID string) (gradeName, chapterName, topicName string, err error) {
	err = s.db.QueryRow(`
		SELECT g.name, c.name, t.name
		FROM topics t
		JOIN chapters c ON c.id = t.chapter_id
		JOIN grades g ON g.id = c.grade_id
		WHERE t.id = ? AND c.id = ? AND g.id = ?`,
		topicID, chapterID, gradeID,
	).Scan(&gradeName, &chapterName, &topicName)
	return gradeName, chapterName, topicName, err
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/rentatutor/rentatutor/internal/model"
)

const questionColumns = `id, author, author_id, title, content, subject, upvotes, answers, posted, has_answer`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	var q model.Question
	if err := row.Scan(&q.ID, &q.Author, &q.AuthorID, &q.Title, &q.Content, &q.Subject,
		&q.Upvotes, &q.Answers, &q.Posted, &q.HasAnswer); err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuestions returns forum questions, newest first.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(`SELECT ` + questionColumns + ` FROM questions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID, or nil if not found.
func (s *Store) GetQuestion(id int64) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return q, err
}

// InsertQuestion stores a new forum question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	posted := q.Posted
	if posted == "" {
		posted = "Just now"
	}
	res, err := s.db.Exec(
		`INSERT INTO questions (author, author_id, title, content, subject, posted) VALUES (?, ?, ?, ?, ?, ?)`,
		q.Author, q.AuthorID, q.Title, q.Content, q.Subject, posted,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAnswers returns a question's answers, best answer first.
func (s *Store) ListAnswers(questionID int64) ([]model.Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, question_id, author, role, content, upvotes, is_best, posted
		 FROM answers WHERE question_id = ? ORDER BY is_best DESC, upvotes DESC, id`, questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Author, &a.Role, &a.Content, &a.Upvotes, &a.IsBest, &a.Posted); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// InsertAnswer stores an answer and marks the question answered.
func (s *Store) InsertAnswer(a model.Answer) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	posted := a.Posted
	if posted == "" {
		posted = "Just now"
	}
	res, err := tx.Exec(
		`INSERT INTO answers (question_id, author, role, content, posted) VALUES (?, ?, ?, ?, ?)`,
		a.QuestionID, a.Author, a.Role, a.Content, posted,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	upd, err := tx.Exec(
		`UPDATE questions SET answers = answers + 1, has_answer = 1 WHERE id = ?`, a.QuestionID,
	)
	if err != nil {
		return 0, err
	}
	if n, _ := upd.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("question %d: %w", a.QuestionID, sql.ErrNoRows)
	}
	return id, tx.Commit()
}

// Upvote adds one upvote to a question.
func (s *Store) Upvote(questionID int64) error {
	_, err := s.db.Exec(`UPDATE questions SET upvotes = upvotes + 1 WHERE id = ?`, questionID)
	return err
}

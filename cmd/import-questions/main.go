package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/database"
	"github.com/backtrackjee/portal-backend/internal/logger"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// paperFile is the JSON shape of one importable paper.
type paperFile struct {
	Year      string         `json:"year"`
	Slot      string         `json:"slot"`
	Questions []fileQuestion `json:"questions"`
}

type fileQuestion struct {
	QuestionID    int      `json:"question_id"`
	Type          string   `json:"type"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Subject       string   `json:"subject"`
	Image         *string  `json:"image"`
}

// buildQuestions converts the file rows into validated domain questions.
// Integer questions omit "options" in the paper files; the column is NOT
// NULL, so a missing array becomes an empty one.
func buildQuestions(examID uuid.UUID, rows []fileQuestion) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(rows))
	for _, fq := range rows {
		options := fq.Options
		if options == nil {
			options = []string{}
		}
		q := model.Question{
			ExamID:        examID,
			QuestionID:    fq.QuestionID,
			Type:          model.QuestionType(fq.Type),
			QuestionText:  fq.QuestionText,
			Options:       options,
			CorrectAnswer: fq.CorrectAnswer,
			Subject:       fq.Subject,
			Image:         fq.Image,
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// import-questions loads a question paper JSON file into the database. The
// slot is normalized on the way in, so lookups with any whitespace or
// underscore spelling resolve the same exam.
func main() {
	path := flag.String("file", "", "path to the paper JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *path == "" {
		log.Fatal().Msg("usage: import-questions -file <paper.json>")
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("Paper file read failed")
	}

	var paper paperFile
	if err := json.Unmarshal(raw, &paper); err != nil {
		log.Fatal().Err(err).Msg("Paper file parse failed")
	}
	if paper.Year == "" || model.NormalizeSlot(paper.Slot) == "" {
		log.Fatal().Msg("Paper must carry a year and a non-empty slot")
	}
	if len(paper.Questions) == 0 {
		log.Fatal().Msg("Paper carries no questions")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	exam := &model.Exam{
		Year:    paper.Year,
		Slot:    paper.Slot,
		SlotKey: model.NormalizeSlot(paper.Slot),
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Fatal().
				Str("year", paper.Year).
				Str("slot_key", exam.SlotKey).
				Msg("Exam already imported")
		}
		log.Fatal().Err(err).Msg("Exam creation failed")
	}

	questions, err := buildQuestions(exam.ID, paper.Questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Question validation failed")
	}

	inserted, err := questionRepo.CreateBatch(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Question import failed")
	}

	log.Info().
		Str("year", exam.Year).
		Str("slot_key", exam.SlotKey).
		Int64("questions", inserted).
		Msg("Paper imported")
}

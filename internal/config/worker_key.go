package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	GradeAttemptsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	GradeAttemptsQueue:  "grade_attempts_queue",
}

package gormdb

import (
	"time"

	"gorm.io/datatypes"
)

type ExamSet struct {
	ID       uint   `gorm:"primaryKey"`
	Semester int    `gorm:"not null;uniqueIndex:idx_exam_set"`
	Year     int    `gorm:"not null;uniqueIndex:idx_exam_set"`
	Season   string `gorm:"not null;uniqueIndex:idx_exam_set"`
}

type Question struct {
	ID             uint           `gorm:"primaryKey"`
	Text           string         `gorm:"not null"`
	Answer1        string         `gorm:"not null"`
	Answer2        string         `gorm:"not null"`
	Answer3        string         `gorm:"not null"`
	CorrectAnswers datatypes.JSON `gorm:"not null"`
	Images         datatypes.JSON `gorm:"not null"`
	ExamSetID      uint           `gorm:"not null;index"`
	ExamSet        ExamSet
	ExamSetQno     int `gorm:"not null;default:0"`
	CreatedBy      *int
	CreatedAt      time.Time
	Votes          []QuestionVote    `gorm:"foreignKey:QuestionID"`
	Comments       []QuestionComment `gorm:"foreignKey:QuestionID"`
}

type QuestionVote struct {
	QuestionID uint   `gorm:"primaryKey;autoIncrement:false"`
	UserID     int    `gorm:"primaryKey;autoIncrement:false"`
	Kind       string `gorm:"primaryKey"`
	Value      string `gorm:"primaryKey"`
}

type QuestionAnswer struct {
	ID         uint   `gorm:"primaryKey"`
	QuestionID uint   `gorm:"not null;index:idx_answer_user_question"`
	UserID     *int   `gorm:"index:idx_answer_user_question"`
	Answer     string `gorm:"not null"`
	AnswerNo   int    `gorm:"not null"`
	Semester   int    `gorm:"not null"`
	CreatedAt  time.Time
}

type QuestionComment struct {
	ID         uint   `gorm:"primaryKey"`
	QuestionID uint   `gorm:"not null;index"`
	UserID     int    `gorm:"not null"`
	Text       string `gorm:"not null"`
	Private    bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type QuestionBookmark struct {
	UserID     int  `gorm:"primaryKey;autoIncrement:false"`
	QuestionID uint `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt  time.Time
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduleConfig é o singleton configurado pelo admin
type ScheduleConfig struct {
	ScheduledDate    string // YYYY-MM-DD
	ScheduledTime    string // HH:MM
	WinningDirection Direction
	UpdatedAt        time.Time
}

// At combina data e hora no fuso informado
func (s ScheduleConfig) At(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.ScheduledDate+" "+s.ScheduledTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return t, nil
}

// Validate confere formato de data/hora e direção
func (s ScheduleConfig) Validate() error {
	if _, err := s.At(time.UTC); err != nil {
		return err
	}
	if _, err := ParseDirection(string(s.WinningDirection)); err != nil {
		return err
	}
	return nil
}

// NextDay avança a data agendada em um dia, mantendo a hora
func (s ScheduleConfig) NextDay() ScheduleConfig {
	d, err := time.Parse(DateLayout, s.ScheduledDate)
	if err != nil {
		return s
	}
	s.ScheduledDate = d.AddDate(0, 0, 1).Format(DateLayout)
	return s
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SettlementRun é a trava por ocorrência: uma linha por instante agendado
type SettlementRun struct {
	ScheduledAt time.Time
	Direction   Direction
	Status      RunStatus
	Processed   int
	TotalPaid   decimal.Decimal
	StartedAt   time.Time
	FinishedAt  *time.Time
	Error       string
}

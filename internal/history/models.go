// SPDX-License-Identifier: MPL-2.0

package history

import (
	"time"

	"freezecheck-cli/pkg/types"
)

type (
	// runModel is the row stored per pipeline run.
	runModel struct {
		ID          string     `gorm:"primaryKey"`
		Sample      string     `gorm:"not null;index:idx_sample"`
		PlatformTag string     `gorm:"not null;default:''"`
		Python      string     `gorm:"not null;default:''"`
		Environment string     `gorm:"not null;default:''"`
		DepsMode    string     `gorm:"not null;default:''"`
		ExitCode    int        `gorm:"not null;default:0"`
		Skipped     bool       `gorm:"not null;default:false"`
		Error       string     `gorm:"not null;default:''"`
		StartedAt   time.Time  `gorm:"not null;index:idx_started_at"`
		FinishedAt  time.Time  `gorm:"not null"`
		Dirs        []dirModel `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	}

	// dirModel is the row stored per attempted artifact directory.
	dirModel struct {
		ID       uint   `gorm:"primaryKey;autoIncrement"`
		RunID    string `gorm:"not null;index:idx_run_id"`
		Position int    `gorm:"not null;default:0"`
		Dir      string `gorm:"not null"`
		ExitCode int    `gorm:"not null;default:0"`
		Records  int    `gorm:"not null;default:0"`
		Skipped  bool   `gorm:"not null;default:false"`
		Error    string `gorm:"not null;default:''"`
	}
)

func (runModel) TableName() string { return "runs" }

func (dirModel) TableName() string { return "run_dirs" }

func toModel(r Run) runModel {
	m := runModel{
		ID:          r.ID,
		Sample:      r.Sample.String(),
		PlatformTag: r.PlatformTag,
		Python:      r.Python,
		Environment: r.Environment,
		DepsMode:    r.DepsMode,
		ExitCode:    int(r.ExitCode),
		Skipped:     r.Skipped,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	for i, d := range r.Dirs {
		m.Dirs = append(m.Dirs, dirModel{
			RunID:    r.ID,
			Position: i,
			Dir:      d.Dir,
			ExitCode: int(d.ExitCode),
			Records:  d.Records,
			Skipped:  d.Skipped,
			Error:    d.Error,
		})
	}
	return m
}

func fromModel(m runModel) Run {
	r := Run{
		ID:          m.ID,
		Sample:      types.SampleName(m.Sample),
		PlatformTag: m.PlatformTag,
		Python:      m.Python,
		Environment: m.Environment,
		DepsMode:    m.DepsMode,
		ExitCode:    types.ExitCode(m.ExitCode),
		Skipped:     m.Skipped,
		Error:       m.Error,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
	for _, d := range m.Dirs {
		r.Dirs = append(r.Dirs, DirResult{
			Dir:      d.Dir,
			ExitCode: types.ExitCode(d.ExitCode),
			Records:  d.Records,
			Skipped:  d.Skipped,
			Error:    d.Error,
		})
	}
	return r
}

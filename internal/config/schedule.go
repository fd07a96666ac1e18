package config

import (
	"fmt"
	"os"

	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"gopkg.in/yaml.v3"
)

type scheduleFile struct {
	Entries []scheduleFileEntry `yaml:"schedule"`
}

type scheduleFileEntry struct {
	Start string  `yaml:"start"`
	End   string  `yaml:"end"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
}

// LoadSchedule reads the thermostat schedule file. Entry order is significant.
func LoadSchedule(path string) ([]domain.ScheduleEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return ParseSchedule(data)
}

func ParseSchedule(data []byte) ([]domain.ScheduleEntry, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	entries := make([]domain.ScheduleEntry, 0, len(file.Entries))
	for i, e := range file.Entries {
		start, err := domain.ParseTimeOfDay(e.Start)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		end, err := domain.ParseTimeOfDay(e.End)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		entry := domain.ScheduleEntry{Start: start, End: end, Low: e.Low, High: e.High}
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("schedule[%d]: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

package models

import "time"

type Room struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Location  string    `yaml:"location" json:"location"`
	Capacity  int       `yaml:"capacity" json:"capacity"`
	State     Lifecycle `yaml:"state" json:"state"`
	CreatedAt time.Time `yaml:"-" json:"created_at"`
	UpdatedAt time.Time `yaml:"-" json:"updated_at"`
}

func (r *Room) Active() bool {
	return r.State == "" || r.State == LifecycleActive
}

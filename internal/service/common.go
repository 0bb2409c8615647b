package service

import (
	"errors"
	"fmt"
	"time"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/pkg/apperror"
	"go-bookstore-pos/pkg/validator"

	"gorm.io/gorm"
)

// payload is the JSON object carried by events
type payload = map[string]interface{}

// validate returns the first failed tag as a ValidationError
func validate(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return apperror.Validation("Validation failed: " + errs[0].String())
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// storeTime normalizes timestamps before they hit the database
func storeTime(t time.Time) time.Time {
	return t.UTC()
}

func actorMessage(actor events.Actor, format string, args ...interface{}) string {
	name := actor.Name
	if name == "" {
		name = "system"
	}
	return name + " " + fmt.Sprintf(format, args...)
}

func withActor(e events.Event, actor events.Actor, message string) events.Event {
	if actor.ID != 0 || actor.Name != "" {
		a := actor
		e.User = &a
	}
	e.Message = message
	return e
}

package alert

import (
	"context"
	"fmt"

	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/service/ai"
)

const emailSubject = "Fire/Smoke detected"

// Actuator flies the response drone. Calls are best-effort and idempotent.
type Actuator interface {
	Takeoff()
	Land()
	StartMotor()
	StopMotor()
	Goto(lat, lon, alt float64)
}

// Notifier delivers messages; false means not sent.
type Notifier interface {
	SendEmail(to, subject, body string) bool
	SendSMS(to, message string) bool
}

// ContactStore yields the current recipients.
type ContactStore interface {
	Recipients(ctx context.Context) ([]model.Contact, error)
}

// Target is where the drone is sent.
type Target struct {
	Lat, Lon, Alt float64
}

// Report summarizes one dispatch. It never feeds back into a detection response.
type Report struct {
	Triggered    int
	EmailsSent   int
	EmailsFailed int
	SMSSent      int
	SMSFailed    int
	Errors       []error
}

// Dispatcher reacts to fire and smoke detections from the single-image path.
type Dispatcher struct {
	actuator Actuator
	notifier Notifier
	contacts ContactStore
	target   Target
	logger   *logger.Logger
}

func NewDispatcher(actuator Actuator, notifier Notifier, contacts ContactStore, target Target, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{
		actuator: actuator,
		notifier: notifier,
		contacts: contacts,
		target:   target,
		logger:   logger,
	}
}

// Dispatch runs, for each fire or smoke detection, the flight sequence
// takeoff, start motor, goto target, notify every contact, land. Failures
// are logged and collected in the report.
func (d *Dispatcher) Dispatch(ctx context.Context, dets []ai.Detection) Report {
	var r Report
	for _, det := range dets {
		if !ai.IsAlertClass(det.Label) {
			continue
		}
		if ctx.Err() != nil {
			r.Errors = append(r.Errors, ctx.Err())
			break
		}
		r.Triggered++
		d.respond(ctx, det, &r)
	}

	if r.Triggered > 0 {
		d.logger.Info("Alert dispatched for %d detection(s): %d/%d emails, %d/%d SMS sent",
			r.Triggered, r.EmailsSent, r.EmailsSent+r.EmailsFailed, r.SMSSent, r.SMSSent+r.SMSFailed)
	}
	return r
}

func (d *Dispatcher) respond(ctx context.Context, det ai.Detection, r *Report) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("alert response panicked: %v", p)
			d.logger.Error("%v", err)
			r.Errors = append(r.Errors, err)
		}
	}()

	d.actuator.Takeoff()
	defer d.actuator.Land()
	d.actuator.StartMotor()
	d.actuator.Goto(d.target.Lat, d.target.Lon, d.target.Alt)

	contacts, err := d.contacts.Recipients(ctx)
	if err != nil {
		d.logger.Error("Error loading contacts for alert: %v", err)
		r.Errors = append(r.Errors, err)
		return
	}

	msg := "Detection: " + det.String()
	for _, c := range contacts {
		if c.Email != "" {
			if d.notifier.SendEmail(c.Email, emailSubject, msg) {
				r.EmailsSent++
			} else {
				r.EmailsFailed++
			}
		}
		if c.Phone != "" {
			if d.notifier.SendSMS(c.Phone, msg) {
				r.SMSSent++
			} else {
				r.SMSFailed++
			}
		}
	}
}

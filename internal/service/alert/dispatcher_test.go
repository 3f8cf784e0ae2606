package alert

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/service/ai"
)

type recorder struct {
	calls []string
}

func (r *recorder) Takeoff()    { r.calls = append(r.calls, "takeoff") }
func (r *recorder) Land()       { r.calls = append(r.calls, "land") }
func (r *recorder) StartMotor() { r.calls = append(r.calls, "start_motor") }
func (r *recorder) StopMotor()  { r.calls = append(r.calls, "stop_motor") }
func (r *recorder) Goto(lat, lon, alt float64) {
	r.calls = append(r.calls, fmt.Sprintf("goto(%g,%g,%g)", lat, lon, alt))
}

func (r *recorder) SendEmail(to, subject, body string) bool {
	r.calls = append(r.calls, "email:"+to)
	return !strings.HasPrefix(to, "bad")
}

func (r *recorder) SendSMS(to, message string) bool {
	r.calls = append(r.calls, "sms:"+to)
	return true
}

type staticContacts struct {
	contacts []model.Contact
	err      error
}

func (s staticContacts) Recipients(context.Context) ([]model.Contact, error) {
	return s.contacts, s.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { l.Close() })
	return l
}

func TestDispatchSequence(t *testing.T) {
	rec := &recorder{}
	contacts := staticContacts{contacts: []model.Contact{
		{FullName: "A", Email: "a@example.com", Phone: "+1"},
		{FullName: "B", Email: "bad@example.com"},
		{FullName: "C"},
	}}
	d := NewDispatcher(rec, rec, contacts, Target{Alt: 50}, testLogger(t))

	dets := []ai.Detection{
		{Label: "person", Score: ai.Score(0.9), Box: ai.Box{W: 5, H: 5}},
		{Label: ai.LabelFire, Score: ai.Score(0.8), Box: ai.Box{W: 5, H: 5}},
	}
	r := d.Dispatch(context.Background(), dets)

	want := []string{"takeoff", "start_motor", "goto(0,0,50)", "email:a@example.com", "sms:+1", "email:bad@example.com", "land"}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("calls = %v\nwant  %v", rec.calls, want)
	}
	if r.Triggered != 1 || r.EmailsSent != 1 || r.EmailsFailed != 1 || r.SMSSent != 1 {
		t.Errorf("report = %+v", r)
	}
}

func TestDispatchOncePerAlertDetection(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, rec, staticContacts{}, Target{}, testLogger(t))

	r := d.Dispatch(context.Background(), []ai.Detection{
		{Label: ai.LabelFire}, {Label: ai.LabelSmoke}, {Label: "car"},
	})
	if r.Triggered != 2 {
		t.Errorf("Triggered = %d, want 2", r.Triggered)
	}
	takeoffs := 0
	for _, c := range rec.calls {
		if c == "takeoff" {
			takeoffs++
		}
	}
	if takeoffs != 2 {
		t.Errorf("takeoffs = %d, want 2", takeoffs)
	}
}

func TestDispatchContactFailureStillLands(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, rec, staticContacts{err: errors.New("db locked")}, Target{}, testLogger(t))

	r := d.Dispatch(context.Background(), []ai.Detection{{Label: ai.LabelSmoke}})
	if len(r.Errors) != 1 {
		t.Errorf("Errors = %v, want one", r.Errors)
	}
	if last := rec.calls[len(rec.calls)-1]; last != "land" {
		t.Errorf("last call = %s, want land", last)
	}
}

type panicky struct{ recorder }

func (p *panicky) Goto(float64, float64, float64) { panic("gps offline") }

func TestDispatchRecoversFromActuatorPanic(t *testing.T) {
	act := &panicky{}
	d := NewDispatcher(act, &recorder{}, staticContacts{}, Target{}, testLogger(t))

	r := d.Dispatch(context.Background(), []ai.Detection{{Label: ai.LabelFire}})
	if len(r.Errors) != 1 {
		t.Fatalf("Errors = %v, want one", r.Errors)
	}
	if last := act.calls[len(act.calls)-1]; last != "land" {
		t.Errorf("last call = %s, want land", last)
	}
}

func TestDispatchNoAlertClassesIsNoop(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, rec, staticContacts{}, Target{}, testLogger(t))

	r := d.Dispatch(context.Background(), []ai.Detection{{Label: "dog"}})
	if r.Triggered != 0 || len(rec.calls) != 0 {
		t.Errorf("report=%+v calls=%v, want nothing", r, rec.calls)
	}
}

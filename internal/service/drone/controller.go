package drone

import (
	"sync"
	"time"

	"firewatch/internal/logger"
)

// Controller is a placeholder flight controller. It logs each command and
// tracks whether the craft is airborne and the motor running; swap the
// bodies for real SDK calls.
type Controller struct {
	mu        sync.Mutex
	inAir     bool
	motorOn   bool
	stepDelay time.Duration
	logger    *logger.Logger
}

// State is a snapshot of the controller.
type State struct {
	InAir   bool
	MotorOn bool
}

// NewController returns a grounded controller. stepDelay is how long Goto
// blocks to simulate travel.
func NewController(stepDelay time.Duration, logger *logger.Logger) *Controller {
	return &Controller{stepDelay: stepDelay, logger: logger}
}

func (c *Controller) Takeoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inAir {
		return
	}
	c.logger.Info("Drone taking off")
	c.inAir = true
}

func (c *Controller) Land() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inAir {
		return
	}
	c.logger.Info("Drone landing")
	c.inAir = false
}

func (c *Controller) StartMotor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.motorOn {
		return
	}
	c.logger.Info("Motor started")
	c.motorOn = true
}

func (c *Controller) StopMotor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.motorOn {
		return
	}
	c.logger.Info("Motor stopped")
	c.motorOn = false
}

// Goto flies to the coordinates. It blocks for the step delay.
func (c *Controller) Goto(lat, lon, alt float64) {
	c.logger.Info("Navigating to %.6f,%.6f at %.1fm", lat, lon, alt)
	if c.stepDelay > 0 {
		time.Sleep(c.stepDelay)
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{InAir: c.inAir, MotorOn: c.motorOn}
}

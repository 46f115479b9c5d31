package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fleetworks/fleet-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	UserRegistered  = "user.registered"
	UserDeleted     = "user.deleted"
	PasswordReset   = "user.password.reset"
	VehicleCreated  = "vehicle.created"
	VehicleDeleted  = "vehicle.deleted"
	VehicleAssigned = "vehicle.assigned"
)

// Event payloads
type UserRegisteredEvent struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`
	RegisteredAt time.Time `json:"registered_at"`
}

type UserDeletedEvent struct {
	UserID    int64     `json:"user_id"`
	DeletedBy int64     `json:"deleted_by"`
	DeletedAt time.Time `json:"deleted_at"`
}

type PasswordResetEvent struct {
	UserID  int64     `json:"user_id"`
	ResetAt time.Time `json:"reset_at"`
}

type VehicleCreatedEvent struct {
	VehicleID          int64  `json:"vehicle_id"`
	ChassisNumber      string `json:"chassis_number"`
	RegistrationNumber string `json:"registration_number"`
	CreatedBy          int64  `json:"created_by"`
}

type VehicleAssignedEvent struct {
	VehicleID    int64     `json:"vehicle_id"`
	DriverUserID int64     `json:"driver_user_id"`
	AssignedBy   int64     `json:"assigned_by"`
	AssignedAt   time.Time `json:"assigned_at"`
}

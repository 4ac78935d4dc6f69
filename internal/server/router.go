// Package server serves fixed QR scanner terminals over a line-oriented TCP protocol.
//
// Each request is one line; each reply is one line. A terminal first presents a
// session token; SCAN, DAY and WEEK then act for the token's user, or for any user
// when the token belongs to an admin:
//
//	AUTH <token>           -> OK <{"userId","role"} json> | ERR <message>
//	SCAN <userId> <code>   -> OK <AttendanceDay json> | ERR <message>
//	DAY <userId> [date]    -> OK <AttendanceDay json> | ERR <message>
//	WEEK <userId>          -> OK <[]AttendanceDay json> | ERR <message>
//	PING                   -> PONG
//	QUIT                   closes the connection
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// MaxConnections bounds concurrently served terminals.
const MaxConnections = 100

var (
	errUnknownUser  = errors.New("unknown or inactive user")
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("insufficient role")
)

// Authenticator verifies terminal session tokens.
type Authenticator interface {
	Authenticate(token string) (*schema.TokenClaims, error)
}

// Records is the part of the attendance store the terminals use.
type Records interface {
	RecordScan(userID, code string) (schema.AttendanceDay, error)
	GetDay(userID, dateKey string) (schema.AttendanceDay, error)
	GetWeek(userID string) ([]schema.AttendanceDay, error)
	FindUserByID(id string) (*schema.User, error)
	Location() *time.Location
	Today() time.Time
}

type Router struct {
	records Records
	auth    Authenticator
	cert    *tls.Certificate
	log     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewRouter(r Records, auth Authenticator, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{records: r, auth: auth, log: log}
}

// SetCertificate enables TLS with cert.
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Listen serves terminals on port until Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()

	r.log.Info("scanner listening", zap.String("addr", listener.Addr().String()), zap.Bool("tls", r.cert != nil))

	semaphore := make(chan struct{}, MaxConnections)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if r.stopped() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			continue
		}

		// Terminals idle between scans; drop them after a while.
		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Addr returns the listening address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Stop closes the listener. Open connections finish their current command.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

func (r *Router) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	var token string

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		switch strings.ToUpper(parts[0]) {
		case "AUTH":
			if len(parts) != 2 {
				fmt.Fprintln(conn, "ERR usage: AUTH <token>")
				continue
			}
			reply(conn, func() (any, error) {
				claims, err := r.authenticate(parts[1])
				if err != nil {
					r.log.Info("terminal auth failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
					return nil, err
				}
				token = parts[1]
				return map[string]string{"userId": claims.UserID, "role": string(claims.Role)}, nil
			})

		case "SCAN":
			if len(parts) < 3 {
				fmt.Fprintln(conn, "ERR usage: SCAN <userId> <code>")
				continue
			}
			reply(conn, func() (any, error) {
				if err := r.authorize(token, parts[1]); err != nil {
					return nil, err
				}
				if err := r.checkUser(parts[1]); err != nil {
					return nil, err
				}
				day, err := r.records.RecordScan(parts[1], strings.Join(parts[2:], " "))
				if err != nil {
					r.log.Info("terminal scan failed", zap.String("user_id", parts[1]), zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
				}
				return day, err
			})

		case "DAY":
			if len(parts) < 2 {
				fmt.Fprintln(conn, "ERR usage: DAY <userId> [date]")
				continue
			}
			reply(conn, func() (any, error) {
				if err := r.authorize(token, parts[1]); err != nil {
					return nil, err
				}
				if err := r.checkUser(parts[1]); err != nil {
					return nil, err
				}
				dateKey := attendance.ToDateKey(r.records.Today())
				if len(parts) > 2 {
					if _, err := attendance.ParseDateKey(parts[2], r.records.Location()); err != nil {
						return nil, sdk.ErrInvalidDate
					}
					dateKey = parts[2]
				}
				return r.records.GetDay(parts[1], dateKey)
			})

		case "WEEK":
			if len(parts) < 2 {
				fmt.Fprintln(conn, "ERR usage: WEEK <userId>")
				continue
			}
			reply(conn, func() (any, error) {
				if err := r.authorize(token, parts[1]); err != nil {
					return nil, err
				}
				if err := r.checkUser(parts[1]); err != nil {
					return nil, err
				}
				return r.records.GetWeek(parts[1])
			})

		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return

		default:
			fmt.Fprintln(conn, "ERR unknown command")
		}
	}
}

func (r *Router) authenticate(token string) (*schema.TokenClaims, error) {
	claims, err := r.auth.Authenticate(token)
	if errors.Is(err, session.ErrInvalidToken) {
		return nil, session.ErrInvalidToken
	}
	return claims, err
}

// authorize checks that token is still valid and may act for userID.
func (r *Router) authorize(token, userID string) error {
	if token == "" {
		return errUnauthorized
	}
	claims, err := r.authenticate(token)
	if err != nil {
		return err
	}
	if claims.UserID != userID && claims.Role != schema.RoleAdmin {
		return errForbidden
	}
	return nil
}

func (r *Router) checkUser(id string) error {
	u, err := r.records.FindUserByID(id)
	if err != nil {
		return err
	}
	if u == nil || !u.Active {
		return errUnknownUser
	}
	return nil
}

func reply(conn net.Conn, fn func() (any, error)) {
	val, err := fn()
	if err != nil {
		fmt.Fprintln(conn, "ERR", err)
		return
	}
	res, err := json.Marshal(val)
	if err != nil {
		fmt.Fprintln(conn, "ERR internal error")
		return
	}
	fmt.Fprintln(conn, "OK", string(res))
}

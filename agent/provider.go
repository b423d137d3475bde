package agent

import (
	"context"
	"errors"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"k8s.io/klog/v2"
)

var ErrNoHosts = errors.New("agent: no relay hosts")

// SessionProvider hands out the session for each connection attempt,
// attempt counts from 0 and keeps growing across reconnects
type SessionProvider interface {
	Provide(ctx context.Context, attempt int) (client.Session, error)
}

// StaticProvider rotates through fixed hosts with a fixed token
type StaticProvider struct {
	RoomID uint64        `json:"room_id" yaml:"room_id"`
	UID    uint64        `json:"uid" yaml:"uid"`
	Token  string        `json:"token" yaml:"token"`
	Hosts  []client.Host `json:"hosts" yaml:"hosts"`
}

func (p *StaticProvider) Provide(_ context.Context, attempt int) (client.Session, error) {
	if len(p.Hosts) == 0 {
		return client.Session{}, ErrNoHosts
	}
	return client.Session{
		RoomID: p.RoomID,
		UID:    p.UID,
		Token:  p.Token,
		Host:   p.Hosts[attempt%len(p.Hosts)],
	}, nil
}

// Resolver is satisfied by *room.Resolver
type Resolver interface {
	Resolve(ctx context.Context, roomID, uid uint64) (client.Session, []client.Host, error)
}

// ApiProvider resolves token and hosts from the web api, resolving again
// once every host of the last answer has been tried
type ApiProvider struct {
	Resolver Resolver
	RoomID   uint64
	UID      uint64

	session  client.Session
	hosts    []client.Host
	resolved int
}

func (p *ApiProvider) Provide(ctx context.Context, attempt int) (client.Session, error) {
	if len(p.hosts) == 0 || attempt-p.resolved >= len(p.hosts) {
		session, hosts, err := p.Resolver.Resolve(ctx, p.RoomID, p.UID)
		if err != nil {
			return client.Session{}, err
		}
		if len(hosts) == 0 {
			return client.Session{}, ErrNoHosts
		}
		klog.Infof("[ApiProvider]room %d resolved, %d hosts", session.RoomID, len(hosts))
		p.session, p.hosts, p.resolved = session, hosts, attempt
	}
	session := p.session
	session.Host = p.hosts[(attempt-p.resolved)%len(p.hosts)]
	return session, nil
}

// SPDX-FileCopyrightText: 2023 The srtla-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package discovery

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/schollz/peerdiscovery"
)

// Peer is another receiver found through its Announcement.
type Peer struct {
	Address      string       `json:"address"`
	Announcement Announcement `json:"announcement"`
	LastSeen     time.Time    `json:"last_seen"`
}

// Manager publishes this receiver's Announcement and collects the ones of
// other receivers.
type Manager struct {
	own Announcement

	peers      map[string]Peer
	peersMutex sync.Mutex

	stopChan4 chan struct{}
	stopChan6 chan struct{}
}

// NewManager for Announcements will be created and started.
func NewManager(own Announcement, interval time.Duration, ipv4, ipv6 bool) (*Manager, error) {
	var manager = &Manager{
		own:   own,
		peers: make(map[string]Peer),
	}

	if ipv4 {
		manager.stopChan4 = make(chan struct{})
	}
	if ipv6 {
		manager.stopChan6 = make(chan struct{})
	}

	log.WithFields(log.Fields{
		"interval":     interval,
		"IPv4":         ipv4,
		"IPv6":         ipv6,
		"announcement": own,
	}).Info("Starting discovery")

	msg, err := MarshalAnnouncement(own)
	if err != nil {
		return nil, err
	}

	sets := []struct {
		active           bool
		multicastAddress string
		stopChan         chan struct{}
		ipVersion        peerdiscovery.IPVersion
		notify           func(discovered peerdiscovery.Discovered)
	}{
		{ipv4, address4, manager.stopChan4, peerdiscovery.IPv4, manager.notify},
		{ipv6, address6, manager.stopChan6, peerdiscovery.IPv6, manager.notify6},
	}

	for _, set := range sets {
		if !set.active {
			continue
		}

		set := peerdiscovery.Settings{
			Limit:            -1,
			Port:             fmt.Sprintf("%d", port),
			MulticastAddress: set.multicastAddress,
			Payload:          msg,
			Delay:            interval,
			TimeLimit:        -1,
			StopChan:         set.stopChan,
			AllowSelf:        false,
			IPVersion:        set.ipVersion,
			Notify:           set.notify,
		}

		discoverErrChan := make(chan error)
		go func() {
			_, discoverErr := peerdiscovery.Discover(set)
			discoverErrChan <- discoverErr
		}()

		select {
		case discoverErr := <-discoverErrChan:
			if discoverErr != nil {
				return nil, discoverErr
			}
		case <-time.After(time.Second):
			break
		}
	}

	return manager, nil
}

func (manager *Manager) notify6(discovered peerdiscovery.Discovered) {
	discovered.Address = fmt.Sprintf("[%s]", discovered.Address)
	manager.notify(discovered)
}

func (manager *Manager) notify(discovered peerdiscovery.Discovered) {
	a, err := UnmarshalAnnouncement(discovered.Payload)
	if err != nil {
		log.WithError(err).WithField("peer", discovered.Address).Debug("Discovery failed to parse incoming package")
		return
	}

	manager.seen(discovered.Address, a, time.Now())
}

func (manager *Manager) seen(addr string, a Announcement, now time.Time) {
	manager.peersMutex.Lock()
	defer manager.peersMutex.Unlock()

	if _, known := manager.peers[addr]; !known {
		log.WithFields(log.Fields{
			"peer":         addr,
			"announcement": a,
		}).Info("Discovered another receiver")
	}
	manager.peers[addr] = Peer{Address: addr, Announcement: a, LastSeen: now}
}

// Peers seen within the given duration.
func (manager *Manager) Peers(within time.Duration) (peers []Peer) {
	manager.peersMutex.Lock()
	defer manager.peersMutex.Unlock()

	deadline := time.Now().Add(-within)
	for addr, peer := range manager.peers {
		if peer.LastSeen.Before(deadline) {
			delete(manager.peers, addr)
			continue
		}
		peers = append(peers, peer)
	}
	return
}

// Close this Manager.
func (manager *Manager) Close() {
	for _, c := range []chan struct{}{manager.stopChan4, manager.stopChan6} {
		if c != nil {
			c <- struct{}{}
		}
	}
}

package radio

import (
	"fmt"
	"strconv"
	"time"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/flexwire"
)

// PushSpot places an enriched spot on the radio's display. If the spot
// id is already showing, the stale entry is removed first and the add is
// issued once the removal is acknowledged, so the display never carries
// two entries for the same id.
func (c *Client) PushSpot(spot *domain.DxSpot) {
	cmd := c.spotAddCommand(spot)

	c.mu.Lock()
	existing, ok := c.spotsBySpotID[spot.ID()]
	c.mu.Unlock()

	if !ok {
		c.sendSpotAdd(spot, cmd)
		return
	}
	c.Send(fmt.Sprintf("spot remove %d", existing.RadioID), func(status, data string, err error) {
		if err != nil {
			c.logger.Printf("remove spot %d: %v", existing.RadioID, err)
			return
		}
		c.forgetRadioSpot(existing.RadioID)
		c.sendSpotAdd(spot, cmd)
	})
}

// sendSpotAdd issues the add command and registers the resulting
// RadioSpot under the radio-assigned id from the reply.
func (c *Client) sendSpotAdd(spot *domain.DxSpot, cmd string) {
	id := spot.ID()
	call := spot.Call
	c.Send(cmd, func(status, data string, err error) {
		if err != nil {
			c.logger.Printf("add spot %s: %v", id, err)
			return
		}
		if status != "0" {
			c.logger.Printf("add spot %s: radio answered %s|%s", id, status, data)
			return
		}
		radioID, err := strconv.Atoi(data)
		if err != nil {
			c.logger.Printf("add spot %s: unparseable radio id %q", id, data)
			return
		}

		rs := &domain.RadioSpot{
			RadioID:   radioID,
			SpotID:    id,
			Call:      call,
			ExpiresAt: time.Now().Add(c.cfg.SpotLifetime),
		}
		c.mu.Lock()
		c.spotsByRadioID[radioID] = rs
		c.spotsBySpotID[id] = rs
		c.mu.Unlock()
	})
}

// handleSpotStatus reacts to the radio's own spot lifecycle reports.
func (c *Client) handleSpotStatus(ss flexwire.SpotStatus) {
	switch ss.Action {
	case flexwire.SpotRemoved:
		c.forgetRadioSpot(ss.Index)
	case flexwire.SpotTriggered:
		call := ss.Callsign()
		if call == "" {
			c.mu.Lock()
			if rs, ok := c.spotsByRadioID[ss.Index]; ok {
				call = rs.Call
			}
			c.mu.Unlock()
		}
		if call == "" {
			c.logger.Printf("spot %d triggered with no callsign", ss.Index)
			return
		}
		c.emit(domain.Event{Type: domain.EventSpotTriggered, Time: time.Now(), Callsign: call})
	case flexwire.SpotUpdated:
		// The radio echoes adds it already acknowledged; nothing to track.
	}
}

// forgetRadioSpot drops a RadioSpot from both indexes.
func (c *Client) forgetRadioSpot(radioID int) {
	c.mu.Lock()
	if rs, ok := c.spotsByRadioID[radioID]; ok {
		delete(c.spotsByRadioID, radioID)
		delete(c.spotsBySpotID, rs.SpotID)
	}
	c.mu.Unlock()
}

// sweepLoop drops RadioSpot entries past their expiration time. The
// radio ages its display entries out on its own; the sweep keeps the
// local mirror from pinning ids forever.
func (c *Client) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for radioID, rs := range c.spotsByRadioID {
				if now.After(rs.ExpiresAt) {
					delete(c.spotsByRadioID, radioID)
					delete(c.spotsBySpotID, rs.SpotID)
				}
			}
			c.mu.Unlock()
		}
	}
}

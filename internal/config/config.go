package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/foxseedlab/roomcall/internal/audio"
)

type Config struct {
	Env                string
	BaseIP             string
	RTPMulticastPort   int
	MulticastInterface string
	RTPEncodingName    string
	RTPClockRate       int
	RTPEncodingParams  int
	RTPPayloadType     int
	MixerMaxInputs     int
	OutputPath         string
	ControlAddr        string
	AutoJoinRooms      []int
	SelfSSRC           uint32
	DatabaseURL        string
	EventWebhookURL    string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if ip := net.ParseIP(c.BaseIP + "1"); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return fmt.Errorf("BASE_IP must be an IPv4 multicast prefix such as 224.1.42., got %q", c.BaseIP)
	}
	if c.RTPMulticastPort <= 0 || c.RTPMulticastPort > 65535 {
		return fmt.Errorf("RTP_MULTICAST_PORT must be in 1..65535, got %d", c.RTPMulticastPort)
	}
	if c.RTPClockRate <= 0 {
		return fmt.Errorf("RTP_CLOCK_RATE must be positive, got %d", c.RTPClockRate)
	}
	if c.RTPEncodingParams < 1 || c.RTPEncodingParams > 2 {
		return fmt.Errorf("RTP_ENCODING_PARAMS must be 1 or 2, got %d", c.RTPEncodingParams)
	}
	if c.RTPPayloadType < 0 || c.RTPPayloadType > 127 {
		return fmt.Errorf("RTP_PAYLOAD_TYPE must be in 0..127, got %d", c.RTPPayloadType)
	}
	if c.MixerMaxInputs <= 0 {
		return fmt.Errorf("MIXER_MAX_INPUTS must be positive, got %d", c.MixerMaxInputs)
	}
	for _, roomID := range c.AutoJoinRooms {
		if err := c.CheckRoomID(roomID); err != nil {
			return fmt.Errorf("AUTO_JOIN_ROOMS is invalid: %w", err)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "BASE_IP", value: c.BaseIP},
		{name: "RTP_ENCODING_NAME", value: c.RTPEncodingName},
		{name: "OUTPUT_PATH", value: c.OutputPath},
	}
}

// CheckRoomID reports whether roomID maps to a multicast group under BaseIP.
func (c *Config) CheckRoomID(roomID int) error {
	ip := net.ParseIP(c.RoomGroup(roomID))
	if roomID < 0 || ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("room %d does not map to a multicast address under %q", roomID, c.BaseIP)
	}
	return nil
}

// RoomGroup is the multicast group a room is received on.
func (c *Config) RoomGroup(roomID int) string {
	return c.BaseIP + strconv.Itoa(roomID)
}

func (c *Config) PayloadFormat() audio.PayloadFormat {
	return audio.PayloadFormat{
		Media:          "audio",
		ClockRate:      c.RTPClockRate,
		EncodingName:   c.RTPEncodingName,
		EncodingParams: c.RTPEncodingParams,
		PayloadType:    uint8(c.RTPPayloadType),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

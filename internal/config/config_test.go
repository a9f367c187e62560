// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The swp08d authors

package config

import "testing"

func TestDefaults(t *testing.T) {
	c := New()
	if c.Transport != TransportTCP {
		t.Errorf("transport = %q, want tcp", c.Transport)
	}
	if c.TCPHost != "localhost" || c.TCPPort != 2000 {
		t.Errorf("tcp endpoint = %s:%d", c.TCPHost, c.TCPPort)
	}
	if c.SerialPath != "/dev/ttyUSB0" || c.SerialBaud != 38400 {
		t.Errorf("serial endpoint = %s @ %d", c.SerialPath, c.SerialBaud)
	}
	if c.MaxSources != 1024 || c.MaxDestinations != 1024 || c.MaxLevels != 16 {
		t.Errorf("bounds = %d/%d/%d", c.MaxSources, c.MaxDestinations, c.MaxLevels)
	}
	if !c.AutoConnect {
		t.Error("auto connect should default on")
	}
	if c.Listen != ":3001" || c.AllowedOrigin != "http://localhost:3000" {
		t.Errorf("server = %s origin %s", c.Listen, c.AllowedOrigin)
	}
	if c.DatabasePath != "" {
		t.Errorf("database path = %q, want empty", c.DatabasePath)
	}
}

func TestLoadFromString(t *testing.T) {
	c := New()
	err := c.LoadFromString(`
# swp08d test configuration
[Router]
Transport=serial
MaxSources=256
MaxDestinations=128
MaxLevels=4
AutoConnect=no

[Serial]
Path=/dev/ttyS2
Baud=115200

[Server]
Listen=:4000
AllowedOrigin=http://panel.local

[Database]
Path=/var/lib/swp08d/state.db
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Transport != TransportSerial {
		t.Errorf("transport = %q", c.Transport)
	}
	if c.MaxSources != 256 || c.MaxDestinations != 128 || c.MaxLevels != 4 {
		t.Errorf("bounds = %d/%d/%d", c.MaxSources, c.MaxDestinations, c.MaxLevels)
	}
	if c.AutoConnect {
		t.Error("auto connect should be off")
	}
	if c.SerialPath != "/dev/ttyS2" || c.SerialBaud != 115200 {
		t.Errorf("serial = %s @ %d", c.SerialPath, c.SerialBaud)
	}
	if c.Listen != ":4000" || c.AllowedOrigin != "http://panel.local" {
		t.Errorf("server = %s origin %s", c.Listen, c.AllowedOrigin)
	}
	if c.DatabasePath != "/var/lib/swp08d/state.db" {
		t.Errorf("database path = %q", c.DatabasePath)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	c := New()
	if err := c.LoadFromString("[TCP]\nHost=router.studio\n"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.TCPHost != "router.studio" {
		t.Errorf("host = %q", c.TCPHost)
	}
	if c.TCPPort != 2000 {
		t.Errorf("port = %d, want default 2000", c.TCPPort)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		ini  string
	}{
		{"bad transport", "[Router]\nTransport=udp\n"},
		{"levels too high", "[Router]\nMaxLevels=17\n"},
		{"sources zero", "[Router]\nMaxSources=0\n"},
		{"destinations too high", "[Router]\nMaxDestinations=2048\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if err := c.LoadFromString(tt.ini); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "Yes"} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"0", "false", "no", ""} {
		if parseBool(v) {
			t.Errorf("parseBool(%q) = true", v)
		}
	}
}

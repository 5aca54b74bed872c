package bacnet

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// DeviceRecord is one row of the device address table (bacwi format).
type DeviceRecord struct {
	ID   int
	Host string
	Port int
	APDU int
}

const (
	bacwiHeader = ";Device   MAC (hex)            SNET  SADR (hex)           APDU"
	bacwiRule   = ";-------- -------------------- ----- -------------------- ----"
	bacwiRow    = "%-9d %-20s %-5d %-20s %-4d"
)

// MAC renders host and port as the six byte BACnet/IP address. The host
// must be an IPv4 literal.
func (r DeviceRecord) MAC() (string, error) {
	ip := net.ParseIP(r.Host).To4()
	if ip == nil {
		return "", fmt.Errorf("device %d: host %q is not an IPv4 address", r.ID, r.Host)
	}
	if r.Port < 0 || r.Port > 0xFFFF {
		return "", fmt.Errorf("device %d: port %d out of range", r.ID, r.Port)
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", ip[0], ip[1], ip[2], ip[3], byte(r.Port>>8), byte(r.Port)), nil
}

// FormatBacwi renders records as a bacwi table. It fails on the first
// record whose address cannot be encoded.
func FormatBacwi(records []DeviceRecord) (string, error) {
	lines := make([]string, 0, len(records)+4)
	lines = append(lines, bacwiHeader, bacwiRule)
	for _, r := range records {
		mac, err := r.MAC()
		if err != nil {
			return "", fmt.Errorf("bacwi: %w", err)
		}
		lines = append(lines, fmt.Sprintf(bacwiRow, r.ID, mac, 0, "00", r.APDU))
	}
	lines = append(lines, ";", fmt.Sprintf("; Total Devices: %d", len(records)))
	return strings.Join(lines, "\n"), nil
}

// ParseBacwi reads a bacwi table. Comment lines and rows that do not carry
// an id and a six byte IP MAC are skipped.
func ParseBacwi(text string) []DeviceRecord {
	var out []DeviceRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if rec, err := parseBacwiRow(line); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func parseBacwiRow(line string) (DeviceRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return DeviceRecord{}, fmt.Errorf("bacwi row %q: too few columns", line)
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("bacwi row %q: device id: %w", line, err)
	}
	mac, err := hex.DecodeString(strings.ReplaceAll(fields[1], ":", ""))
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("bacwi row %q: mac: %w", line, err)
	}
	if len(mac) != 6 {
		return DeviceRecord{}, fmt.Errorf("bacwi row %q: mac is %d bytes", line, len(mac))
	}
	rec := DeviceRecord{
		ID:   id,
		Host: net.IPv4(mac[0], mac[1], mac[2], mac[3]).String(),
		Port: int(mac[4])<<8 | int(mac[5]),
	}
	if len(fields) >= 5 {
		if apdu, err := strconv.Atoi(fields[4]); err == nil {
			rec.APDU = apdu
		}
	}
	return rec, nil
}

// ReadBacwiFile loads the address table written by WriteBacwiFile or by
// the bacwi tool.
func ReadBacwiFile(path string) ([]DeviceRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read address cache: %w", err)
	}
	return ParseBacwi(string(b)), nil
}

func WriteBacwiFile(path string, records []DeviceRecord) error {
	text, err := FormatBacwi(records)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write address cache: %w", err)
	}
	return nil
}

package archive

import (
	"fmt"
	"time"
)

// PacketRecord is one archived NAV-PVT packet, with the decoded fields kept
// alongside the raw bytes for querying.
type PacketRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	ITOW       uint32    `gorm:"column:itow;index" json:"itow_ms"`
	Year       uint16    `json:"year"`
	Month      uint8     `json:"month"`
	Day        uint8     `json:"day"`
	Hour       uint8     `json:"hour"`
	Minute     uint8     `json:"minute"`
	Second     uint8     `json:"second"`
	FixType    uint8     `json:"fix_type"`
	NumSV      uint8     `json:"num_sv"`
	Lat        int32     `json:"lat_e7"`
	Lon        int32     `json:"lon_e7"`
	HeightMM   int32     `json:"height_mm"`
	GSpeedMMPS int32     `gorm:"column:gspeed_mmps" json:"gspeed_mmps"`
	Raw        []byte    `json:"raw"`
}

func (PacketRecord) TableName() string {
	return "navpvt_packets"
}

func (r PacketRecord) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d itow=%d fix=%d sv=%d lat=%.7f lon=%.7f h=%.3fm",
		r.Year, r.Month, r.Day, r.Hour, r.Minute, r.Second, r.ITOW, r.FixType, r.NumSV,
		float64(r.Lat)/1e7, float64(r.Lon)/1e7, float64(r.HeightMM)/1000)
}

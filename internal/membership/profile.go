package membership

import (
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// Profile is a volcano's self-reported identity and declared capacity:
// the payload a joining node first presents to the network (spec.md
// §4.9 join_network, §6 DHT profile fields).
type Profile struct {
	Nickname  string
	FQDN      string
	IPAddr    string
	Port      uint16
	Bandwidth uint32
	Storage   uint32
}

// ProfileOf captures v's identity/capacity fields as a Profile, for a
// node describing itself to the network it is about to join.
func ProfileOf(v *ring.Volcano) Profile {
	return Profile{
		Nickname:  v.Nickname,
		FQDN:      v.FQDN,
		IPAddr:    v.IPAddr,
		Port:      v.Port,
		Bandwidth: v.Bandwidth,
		Storage:   v.Storage,
	}
}

// toVolcano builds a bare ring.Volcano from p, with no interval yet
// assigned; callers set StartKey/StopKey once those are known.
func (p Profile) toVolcano() *ring.Volcano {
	return &ring.Volcano{
		Nickname:  p.Nickname,
		FQDN:      p.FQDN,
		IPAddr:    p.IPAddr,
		Port:      p.Port,
		Bandwidth: p.Bandwidth,
		Storage:   p.Storage,
		Alive:     true,
	}
}

func putProfile(e *wire.Encoder, p Profile) {
	e.PutString(p.Nickname)
	e.PutString(p.FQDN)
	e.PutString(p.IPAddr)
	e.PutUint16(p.Port)
	e.PutUint32(p.Bandwidth)
	e.PutUint32(p.Storage)
}

func getProfile(d *wire.Decoder) Profile {
	return Profile{
		Nickname:  d.GetString(),
		FQDN:      d.GetString(),
		IPAddr:    d.GetString(),
		Port:      d.GetUint16(),
		Bandwidth: d.GetUint32(),
		Storage:   d.GetUint32(),
	}
}

// putVolcano writes a full ring record: profile fields plus its
// interval, used by transmit_topology to describe existing members.
func putVolcano(e *wire.Encoder, v *ring.Volcano) {
	putProfile(e, ProfileOf(v))
	e.PutString(string(v.StartKey))
	e.PutString(string(v.StopKey))
}

func getVolcano(d *wire.Decoder) *ring.Volcano {
	v := getProfile(d).toVolcano()
	v.StartKey = ring.Key(d.GetString())
	v.StopKey = ring.Key(d.GetString())
	return v
}

// addr formats a profile's inter-node UDP address, mirroring
// ops.NodeAddr for the pre-ring-membership client role.
func (p Profile) addr() string {
	return p.IPAddr + ":" + portString(p.Port)
}

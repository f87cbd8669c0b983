package ops

import (
	"context"
	"net"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/direngine"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/flare"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ring"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// fanOutParent implements the parent-add/remove fan-out of spec.md
// §4.6/§4.7: on successful create or remove, the new/removed name is
// reflected in the parent directory's contents on the parent's owner,
// redundant owner, and joining node (if any).
func (s *Server) fanOutParent(ctx context.Context, header wire.RequestHeader, parentPath, name string, add bool) {
	owner, err := ring.Route(s.Ring, parentPath)
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).WithField("parent", parentPath).Warn("fan-out: cannot route parent")
		}
		return
	}
	redOwner := ring.RedundantOwner(s.Ring, owner)

	targets := []*ring.Volcano{owner, redOwner}
	if owner.JoiningNode != "" {
		if joining := s.Ring.ByNickname(owner.JoiningNode); joining != nil {
			targets = append(targets, joining)
		}
	}

	self := s.self()
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if target == nil || seen[target.Nickname] {
			continue
		}
		seen[target.Nickname] = true

		if target.Equal(self) {
			if err := s.performParentOp(parentPath, name, add); err != nil && s.Log != nil {
				s.Log.WithError(err).WithField("parent", parentPath).Warn("fan-out: local parent update failed")
			}
			continue
		}
		s.sendParentOp(target, header, parentPath, name, add)
	}
}

// performParentOp applies the add/remove directly to the parent flare's
// on-disk directory body.
func (s *Server) performParentOp(parentPath, name string, add bool) error {
	return s.withFlare(parentPath, true, func(f *flare.Flare) error {
		if f.Type == flare.TypeUnknown {
			f.Type = flare.TypeDir
			f.IsUpcasted = true
		}
		firstTime := !s.Store.Exists(f)
		if err := s.Store.Save(f, firstTime); err != nil {
			return wrap(wire.EIO, err)
		}

		raw, err := readContents(s, f)
		if err != nil {
			return wrap(wire.EIO, err)
		}
		body := direngine.NewBody(raw)
		if add {
			body.Append(name)
		} else {
			body.Remove(name)
		}
		if _, err := writeContentsAt(s, f, 0, body.Bytes()); err != nil {
			return wrap(wire.EIO, err)
		}
		return nil
	})
}

// sendParentOp forwards an add/remove to a remote owner over the
// inter-node socket. Failures are logged but do not abort the local
// operation that triggered the fan-out — a missed redundant copy is
// healed by the balancer/replication path, not by blocking the client.
func (s *Server) sendParentOp(target *ring.Volcano, header wire.RequestHeader, parentPath, name string, add bool) {
	op := wire.OpAddFlareToParent
	if !add {
		op = wire.OpRemoveFlareFromParent
	}
	reqHeader := wire.RequestHeader{
		OpType:        op,
		TTL:           wire.TerminalTTL,
		TransactionID: s.Txids.Next(),
		UID:           header.UID,
		GID:           header.GID,
	}
	e := wire.NewEncoder()
	e.PutRequestHeader(reqHeader)
	e.PutString(parentPath)
	e.PutString(name)

	if _, err := s.Send(NodeAddr(target), e.Bytes()); err != nil && s.Log != nil {
		s.Log.WithError(err).WithField("target", target.Nickname).Warn("fan-out: send failed")
	}
}

// AddFlareToParent services the RPC sendParentOp issues against a
// remote parent owner.
func (s *Server) AddFlareToParent(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return s.handleParentRPC(body, true)
}

// RemoveFlareFromParent is the remove counterpart of AddFlareToParent.
func (s *Server) RemoveFlareFromParent(ctx context.Context, peer *net.UDPAddr, header wire.RequestHeader, body []byte) (int32, wire.Errno, []byte) {
	return s.handleParentRPC(body, false)
}

func (s *Server) handleParentRPC(body []byte, add bool) (int32, wire.Errno, []byte) {
	dec := wire.NewDecoder(body)
	parentPath := dec.GetString()
	name := dec.GetString()
	if dec.Err() != nil {
		return -1, wire.EINVAL, nil
	}
	return finishMutation(s.performParentOp(parentPath, name, add))
}

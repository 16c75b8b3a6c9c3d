package mavlink

import (
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/uaslink/log2"
)

type CodecOptions struct {
	Log *log2.Log
	// Shared secret for authentication trailer.
	// When set, Decode accepts only authenticated frames.
	Secret []byte
}

// Codec implements link.Codec.
// Decode must be called from single goroutine at a time, Encode is safe for concurrent use.
type Codec struct {
	mu     sync.Mutex // protects parser
	log    *log2.Log
	parser *Parser
	secret []byte
	seq    uint32
}

func NewCodec(opt CodecOptions) (*Codec, error) {
	if len(opt.Secret) != 0 && len(opt.Secret) < AuthMinSecret {
		return nil, errors.Annotate(ErrAuthSecretWeak, "codec")
	}
	return &Codec{
		log:    opt.Log,
		parser: NewParser(opt.Secret),
		secret: opt.Secret,
	}, nil
}

func (c *Codec) Decode(b []byte) []*Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.parser.stat.BadCRC.Value() + c.parser.stat.BadAuth.Value() + c.parser.stat.Unknown.Value()
	ps := c.parser.Feed(b)
	if after := c.parser.stat.BadCRC.Value() + c.parser.stat.BadAuth.Value() + c.parser.stat.Unknown.Value(); after != before {
		c.log.Debugf("codec rejected=%d b=(%d)%x", after-before, len(b), b)
	}
	return ps
}

// Encode frames msg with next sequence number.
// sign=true requires secret configured.
func (c *Codec) Encode(msg Message, sysid, compid uint8, sign bool) ([]byte, error) {
	var secret []byte
	if sign {
		if len(c.secret) == 0 {
			return nil, errors.Annotate(ErrAuthSecretWeak, "sign requested")
		}
		secret = c.secret
	}
	seq := uint8(atomic.AddUint32(&c.seq, 1) - 1)
	return EncodeFrame(msg, seq, sysid, compid, secret)
}

func (c *Codec) Stat() *ParserStat { return c.parser.Stat() }

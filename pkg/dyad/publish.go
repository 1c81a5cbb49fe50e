package dyad

import (
	"context"

	"github.com/dyad-io/dyad/pkg/keygen"
)

// publish commits this rank as the owner of userPath. The commit is blocking:
// the caller's close does not return until the ownership record is durable in
// the KVS, which is the ordering primitive consumers' wait-create lookups
// rely on. Uses context.Background: once entered, a publish runs to
// completion.
func (c *Ctx) publish(userPath string) error {
	topic, err := keygen.PathKey(userPath, c.keyDepth, c.keyBins)
	if err != nil {
		return coded(SysFail, err)
	}

	if c.kvs == nil {
		return codedf(NoCtx, "no transport handle")
	}

	c.debugf("PROD: publishing ownership of %q (rank %d)", topic, c.rank)

	if err := c.kvs.CommitOwner(context.Background(), topic, c.rank); err != nil {
		return coded(BadCommit, err)
	}
	return nil
}

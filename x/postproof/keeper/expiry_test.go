package keeper_test

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) setExpiry(timeout int64, perBlock uint32) {
	params, err := suite.keeper.GetParams(suite.f.Ctx)
	suite.Require().NoError(err)
	params.PendingJobTimeout = timeout
	params.MaxExpirationsPerBlock = perBlock
	suite.Require().NoError(suite.keeper.SetParams(suite.f.Ctx, params))
}

func (suite *KeeperTestSuite) TestExpiryDisabledByDefault() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")

	suite.f.AdvanceBlocks(10 * types.DefaultJobDeadlineHorizon)
	suite.Require().NoError(suite.keeper.EndBlocker(suite.f.Ctx))
	suite.Require().True(suite.getLog(suite.claimant).IsPending())
}

func (suite *KeeperTestSuite) TestEndBlockerExpiresStaleJobs() {
	suite.setExpiry(10, 100)
	suite.createConfig()
	sj := suite.submit(suite.claimant, "req-1")
	job, _ := suite.f.Coprocessor.LastJob()

	// deadline + timeout is still inclusive
	suite.f.AdvanceBlocks(sj.Deadline + 10 - suite.f.Ctx.BlockHeight())
	n, err := suite.keeper.ExpirePendingJobs(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Zero(n)

	suite.f.AdvanceBlocks(1)
	suite.f.Ctx = suite.f.Ctx.WithEventManager(sdk.NewEventManager())
	suite.Require().NoError(suite.keeper.EndBlocker(suite.f.Ctx))

	log := suite.getLog(suite.claimant)
	suite.Require().False(log.IsPending())
	suite.Require().False(log.IsVerified)
	suite.Require().Zero(log.Slot, "expiry is not a decision")

	var expired bool
	for _, ev := range suite.f.Ctx.EventManager().Events() {
		if ev.Type == types.EventTypeVerificationExpired {
			expired = true
		}
	}
	suite.Require().True(expired)
	suite.requireInvariants()

	// a result arriving after expiry is stale
	_, err = suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(payload(1, "content")))
	suite.Require().ErrorIs(err, types.ErrInvalidCallback)
	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())

	// and the claimant may try again right away
	suite.submit(suite.claimant, "req-1")
}

func (suite *KeeperTestSuite) TestExpiryIsBoundedPerBlock() {
	suite.setExpiry(1, 2)
	suite.createConfig()
	for _, name := range []string{"a", "b", "c"} {
		suite.submit(addr(name), "req-"+name)
	}
	suite.f.AdvanceBlocks(types.DefaultJobDeadlineHorizon + 2)

	n, err := suite.keeper.ExpirePendingJobs(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(2, n)
	n, err = suite.keeper.ExpirePendingJobs(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(1, n)
	n, err = suite.keeper.ExpirePendingJobs(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Zero(n)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestExpirySkipsSettledJobs() {
	suite.setExpiry(1, 100)
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	_, err := suite.deliver(1)
	suite.Require().NoError(err)

	suite.f.AdvanceBlocks(types.DefaultJobDeadlineHorizon + 2)
	n, err := suite.keeper.ExpirePendingJobs(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Zero(n)
	suite.Require().True(suite.getLog(suite.claimant).IsVerified)
}

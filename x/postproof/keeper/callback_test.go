package keeper_test

import (
	"crypto/sha256"
	"encoding/hex"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) TestOnJobResultVerifiedPaysReward() {
	suite.createConfig("zk")
	suite.submit(suite.claimant, "req-1")
	escrow := suite.f.Balance(suite.config)

	out, err := suite.deliver(1)
	suite.Require().NoError(err)
	suite.Require().True(out.Verified())

	requireAmount(suite.T(), testReward, suite.f.Balance(suite.claimant))
	suite.Require().Equal(escrow.Sub(amount(testReward)), suite.f.Balance(suite.config))

	cfg := suite.getConfig()
	suite.Require().Equal(uint64(1), cfg.ClaimersCount)
	suite.Require().True(cfg.Active)

	log := suite.getLog(suite.claimant)
	suite.Require().True(log.IsVerified)
	suite.Require().False(log.IsPending())
	suite.Require().Equal(suite.f.Ctx.BlockHeight(), log.Slot)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestOnJobResultRejectedPaysNothing() {
	suite.createConfig("zk")
	suite.submit(suite.claimant, "req-1")
	escrow := suite.f.Balance(suite.config)

	out, err := suite.deliver(0)
	suite.Require().NoError(err)
	suite.Require().False(out.Verified())

	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())
	suite.Require().Equal(escrow, suite.f.Balance(suite.config))
	suite.Require().Zero(suite.getConfig().ClaimersCount)
	log := suite.getLog(suite.claimant)
	suite.Require().False(log.IsVerified)
	suite.Require().False(log.IsPending())

	var rejected bool
	for _, ev := range suite.f.Ctx.EventManager().Events() {
		suite.Require().NotEqual(types.EventTypeRewardPaid, ev.Type)
		if ev.Type == types.EventTypePostRejected {
			rejected = true
		}
	}
	suite.Require().True(rejected)
}

func (suite *KeeperTestSuite) TestOnJobResultRequiresCapability() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	job, _ := suite.f.Coprocessor.LastJob()

	_, err := suite.keeper.OnJobResult(suite.f.Ctx, types.NewCallbackCapability("forged"), job.Result(payload(1, "content")))
	suite.Require().ErrorIs(err, types.ErrUnauthorized)
	_, err = suite.keeper.OnJobResult(suite.f.Ctx, nil, job.Result(payload(1, "content")))
	suite.Require().ErrorIs(err, types.ErrUnauthorized)

	suite.Require().True(suite.getLog(suite.claimant).IsPending())
	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())
}

func (suite *KeeperTestSuite) TestOnJobResultRejectsMismatchedAccounts() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	job, _ := suite.f.Coprocessor.LastJob()

	testCases := []struct {
		name   string
		mutate func(*types.JobResult)
	}{
		{"forged job ref", func(r *types.JobResult) { r.JobRef = addr("other-job") }},
		{"log of another claimant", func(r *types.JobResult) { r.Log = types.LogAddress(addr("bob"), r.Config) }},
		{"claimant swapped", func(r *types.JobResult) {
			r.Claimant = addr("bob")
			r.Log = types.LogAddress(r.Claimant, r.Config)
		}},
		{"tracker of another request", func(r *types.JobResult) { r.Tracker = types.TrackerAddress("req-2") }},
		{"unknown config", func(r *types.JobResult) {
			r.Config = addr("missing")
			r.Log = types.LogAddress(r.Claimant, r.Config)
		}},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			res := job.Result(payload(1, "content"))
			tc.mutate(&res)
			_, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, res)
			suite.Require().ErrorIs(err, types.ErrInvalidCallback)
		})
	}

	suite.Require().True(suite.getLog(suite.claimant).IsPending())
	suite.Require().Zero(suite.getConfig().ClaimersCount)
}

func (suite *KeeperTestSuite) TestOnJobResultTrackerReassigned() {
	suite.createConfig()
	suite.submit(suite.claimant, "shared")
	first, _ := suite.f.Coprocessor.LastJob()
	suite.submit(addr("bob"), "shared")

	// the tracker now points at bob's job
	_, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, first.Result(payload(1, "content")))
	suite.Require().ErrorIs(err, types.ErrInvalidCallback)
	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())

	_, err = suite.deliver(1)
	suite.Require().NoError(err)
	requireAmount(suite.T(), testReward, suite.f.Balance(addr("bob")))
}

func (suite *KeeperTestSuite) TestOnJobResultReplayIsRejected() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	_, err := suite.deliver(1)
	suite.Require().NoError(err)

	configBalance := suite.f.Balance(suite.config)
	_, err = suite.deliver(1)
	suite.Require().ErrorIs(err, types.ErrInvalidCallback)
	requireAmount(suite.T(), testReward, suite.f.Balance(suite.claimant))
	suite.Require().Equal(configBalance, suite.f.Balance(suite.config))
	suite.Require().Equal(uint64(1), suite.getConfig().ClaimersCount)
}

func (suite *KeeperTestSuite) TestOnJobResultMalformedPayload() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	job, _ := suite.f.Coprocessor.LastJob()

	for _, output := range [][]byte{nil, {1}, make([]byte, 32), make([]byte, 34)} {
		_, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(output))
		suite.Require().ErrorIs(err, types.ErrCallbackError)
	}
	suite.Require().True(suite.getLog(suite.claimant).IsPending(), "a bad payload leaves the job pending")

	_, err := suite.deliver(1)
	suite.Require().NoError(err)
}

func (suite *KeeperTestSuite) TestOnJobResultDigestMismatch() {
	suite.createConfig()
	expected := sha256.Sum256([]byte("expected post"))
	req := suite.request(suite.claimant, "req-1")
	req.ContentDigest = expected[:]
	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().NoError(err)
	job, _ := suite.f.Coprocessor.LastJob()

	_, err = suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(payload(1, "edited post")))
	suite.Require().ErrorIs(err, types.ErrInvalidOutput)
	suite.Require().True(suite.getLog(suite.claimant).IsPending())
	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())

	out, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(payload(1, "expected post")))
	suite.Require().NoError(err)
	suite.Require().Equal(hex.EncodeToString(expected[:]), out.DigestHex())
	requireAmount(suite.T(), testReward, suite.f.Balance(suite.claimant))
}

func (suite *KeeperTestSuite) TestOnJobResultCapClosesCampaign() {
	suite.createConfig()
	claimants := []sdk.AccAddress{addr("c1"), addr("c2"), addr("c3")}
	for i, c := range claimants {
		suite.submit(c, reqID(c))
		_, err := suite.deliver(1)
		suite.Require().NoError(err)
		suite.Require().Equal(uint64(i+1), suite.getConfig().ClaimersCount)
	}

	cfg := suite.getConfig()
	suite.Require().False(cfg.Active)
	suite.Require().Zero(cfg.RemainingClaims())
	requireAmount(suite.T(), types.DefaultStorageFloor, suite.f.Balance(suite.config), "only the storage floor is left")

	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(addr("c4"), "req-late"))
	suite.Require().ErrorIs(err, types.ErrConfigNotActive)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestOnJobResultSkipsRewardWhenFull() {
	suite.createConfig()
	late := addr("late")
	// four jobs in flight for three claims
	for _, c := range []sdk.AccAddress{late, addr("c1"), addr("c2"), addr("c3")} {
		suite.submit(c, reqID(c))
	}
	jobs := suite.f.Coprocessor.Jobs
	for _, job := range jobs[1:] {
		_, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(payload(1, "content")))
		suite.Require().NoError(err)
	}
	suite.Require().False(suite.getConfig().Active)

	suite.f.Ctx = suite.f.Ctx.WithEventManager(sdk.NewEventManager())
	out, err := suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, jobs[0].Result(payload(1, "content")))
	suite.Require().NoError(err)
	suite.Require().True(out.Verified())
	suite.Require().True(suite.f.Balance(late).IsZero())
	suite.Require().Equal(testMaxClaimers, suite.getConfig().ClaimersCount)
	suite.Require().True(suite.getLog(late).IsVerified)

	var skipped bool
	for _, ev := range suite.f.Ctx.EventManager().Events() {
		if ev.Type == types.EventTypeRewardSkipped {
			skipped = true
		}
	}
	suite.Require().True(skipped)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestOnJobResultPausedCampaignStillSettles() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")

	inactive := false
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &inactive}))

	_, err := suite.deliver(1)
	suite.Require().NoError(err)
	requireAmount(suite.T(), testReward, suite.f.Balance(suite.claimant))
	suite.Require().False(suite.getConfig().Active)
}

func reqID(claimant sdk.AccAddress) string {
	return "req-" + hex.EncodeToString(claimant)[:8]
}

package keeper_test

import (
	"errors"

	"github.com/proofofpost/pop/x/postproof/guest"
	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) TestSubmitVerificationSubmitsJob() {
	suite.createConfig("zk", "rollup")
	req := suite.request(suite.claimant, "req-1")
	req.Tip = 25
	suite.f.Fund(suite.T(), suite.claimant, 25)

	sj, err := suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().NoError(err)

	job, ok := suite.f.Coprocessor.LastJob()
	suite.Require().True(ok)
	suite.Require().Equal(sj.JobRef, job.Ref)
	suite.Require().Equal(guest.ImageID, job.ImageID)
	suite.Require().Equal(types.EncodePublicInput(512, []string{"zk", "rollup"}), job.PublicInput)
	suite.Require().Equal(testPostURL, job.ContentURL)
	suite.Require().Equal(uint64(25), job.Tip)
	suite.Require().Equal(suite.f.Ctx.BlockHeight()+types.DefaultJobDeadlineHorizon, job.Deadline)
	suite.Require().Equal(types.CallbackDescriptor{
		Tracker:  types.TrackerAddress("req-1"),
		Config:   suite.config,
		Log:      types.LogAddress(suite.claimant, suite.config),
		Claimant: suite.claimant,
	}, job.Callback)

	tracker, found, err := suite.keeper.GetTracker(suite.f.Ctx, types.TrackerAddress("req-1"))
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Require().Equal(sj.JobRef, tracker.ExecutionAccount)

	log := suite.getLog(suite.claimant)
	suite.Require().True(log.IsPending())
	suite.Require().Equal(sj.JobRef, log.CurrentExecution)
	suite.Require().Equal(suite.claimant, log.Verifier)
	suite.Require().Equal(testPostURL, log.PostURL)
	suite.Require().Equal(uint64(1), log.Attempts)
	suite.Require().Zero(log.Slot)

	requireAmount(suite.T(), 25, suite.f.Balance(suite.f.Coprocessor.FeeAddress()), "tip goes to the coprocessor")
	suite.Require().True(suite.f.Balance(suite.claimant).IsZero())
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestSubmitVerificationPreconditionOrder() {
	suite.createConfig()

	// spoofed tracker on an inactive campaign reports the campaign first
	inactive := false
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &inactive}))
	req := suite.request(suite.claimant, "req-1")
	req.Tracker = types.TrackerAddress("someone-else")
	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrConfigNotActive)

	active := true
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &active}))
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrPostVerificationRequestFailed)

	req.Tracker = addr("random")
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrPostVerificationRequestFailed)

	_, ok := suite.f.Coprocessor.LastJob()
	suite.Require().False(ok, "rejected requests never reach the coprocessor")
	_, found, err := suite.keeper.GetTracker(suite.f.Ctx, types.TrackerAddress("req-1"))
	suite.Require().NoError(err)
	suite.Require().False(found)
}

func (suite *KeeperTestSuite) TestSubmitVerificationInsufficientEscrow() {
	params, err := suite.keeper.GetParams(suite.f.Ctx)
	suite.Require().NoError(err)
	params.StorageFloor = 0
	suite.Require().NoError(suite.keeper.SetParams(suite.f.Ctx, params))

	// a zero-funded campaign with a reward cannot be created active, so pay
	// out through the owner then drain it by reducing the escrow externally
	suite.f.Fund(suite.T(), suite.owner, testReward)
	cfg, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, "one", nil, testReward, 1)
	suite.Require().NoError(err)
	suite.config = cfg
	suite.Require().NoError(suite.f.BankKeeper.SendCoins(suite.f.Ctx, cfg, suite.owner, suite.f.BankKeeper.GetAllBalances(suite.f.Ctx, cfg)))

	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(suite.claimant, "req-1"))
	suite.Require().ErrorIs(err, types.ErrInsufficientFunds)
}

func (suite *KeeperTestSuite) TestSubmitVerificationValidation() {
	suite.createConfig()

	req := suite.request(suite.claimant, "")
	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrInvalidRequest)

	req = suite.request(suite.claimant, "req-1")
	req.PostURL = "not a url"
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrInvalidRequest)

	req = suite.request(suite.claimant, "req-1")
	req.Config = addr("missing")
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrConfigNotFound)

	req = suite.request(suite.claimant, "req-1")
	req.Tip = 10
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrInsufficientFunds, "claimant cannot pay the tip")
	_, found, err := suite.keeper.GetVerificationLog(suite.f.Ctx, types.LogAddress(suite.claimant, suite.config))
	suite.Require().NoError(err)
	suite.Require().False(found)
}

func (suite *KeeperTestSuite) TestSubmitVerificationSingleFlight() {
	suite.createConfig()
	first := suite.submit(suite.claimant, "req-1")

	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(suite.claimant, "req-2"))
	suite.Require().ErrorIs(err, types.ErrVerificationTooFast)

	suite.f.AdvanceBlocks(types.DefaultJobDeadlineHorizon)
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(suite.claimant, "req-2"))
	suite.Require().ErrorIs(err, types.ErrVerificationTooFast, "job is live until its deadline")

	// once the deadline has passed the stale job may be replaced
	suite.f.AdvanceBlocks(1)
	second := suite.submit(suite.claimant, "req-2")
	suite.Require().NotEqual(first.JobRef, second.JobRef)
	suite.Require().Equal(second.JobRef, suite.getLog(suite.claimant).CurrentExecution)
	suite.requireInvariants()

	// another claimant is not affected
	suite.submit(addr("bob"), "req-3")
}

func (suite *KeeperTestSuite) TestSubmitVerificationCooldown() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	_, err := suite.deliver(0)
	suite.Require().NoError(err)

	suite.f.AdvanceBlocks(types.DefaultVerificationCooldown - 1)
	_, err = suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(suite.claimant, "req-1"))
	suite.Require().ErrorIs(err, types.ErrVerificationTooFast)
	suite.Require().True(types.Retryable(err))

	suite.f.AdvanceBlocks(1)
	suite.submit(suite.claimant, "req-1")
	suite.Require().Equal(uint64(2), suite.getLog(suite.claimant).Attempts)
}

func (suite *KeeperTestSuite) TestSubmitVerificationReusesTracker() {
	suite.createConfig()
	first := suite.submit(suite.claimant, "shared")
	second := suite.submit(addr("bob"), "shared")
	suite.Require().NotEqual(first.JobRef, second.JobRef, "job references never repeat")

	tracker, found, err := suite.keeper.GetTracker(suite.f.Ctx, types.TrackerAddress("shared"))
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Require().Equal(second.JobRef, tracker.ExecutionAccount)
}

func (suite *KeeperTestSuite) TestSubmitVerificationCoprocessorFailureLeavesNoState() {
	suite.createConfig()
	suite.f.Coprocessor.Err = errors.New("queue full")

	req := suite.request(suite.claimant, "req-1")
	req.Tip = 10
	suite.f.Fund(suite.T(), suite.claimant, 10)
	_, err := suite.keeper.SubmitVerification(suite.f.Ctx, req)
	suite.Require().ErrorIs(err, types.ErrCoprocessorUnavailable)

	_, found, err := suite.keeper.GetVerificationLog(suite.f.Ctx, types.LogAddress(suite.claimant, suite.config))
	suite.Require().NoError(err)
	suite.Require().False(found)
	_, found, err = suite.keeper.GetTracker(suite.f.Ctx, types.TrackerAddress("req-1"))
	suite.Require().NoError(err)
	suite.Require().False(found)
	suite.Require().Equal(uint64(1), suite.keeper.GetNextJobNonce(suite.f.Ctx))
	requireAmount(suite.T(), 10, suite.f.Balance(suite.claimant), "tip is refunded by not committing")
}

package keeper_test

import (
	"encoding/hex"

	"github.com/proofofpost/pop/x/postproof/keeper"
	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) TestMsgServerLifecycle() {
	ms := keeper.NewMsgServerImpl(suite.keeper)
	cs := keeper.NewCallbackServerImpl(suite.keeper, suite.f.Capability)
	suite.f.Fund(suite.T(), suite.owner, escrowFor(testReward, testMaxClaimers))

	created, err := ms.CreateConfig(suite.f.Ctx, &types.MsgCreateConfig{
		Owner:        suite.owner.String(),
		Label:        "launch",
		Keywords:     []string{"ZK", "rollup"},
		RewardAmount: testReward,
		MaxClaimers:  testMaxClaimers,
	})
	suite.Require().NoError(err)
	suite.config = types.ConfigAddress(suite.owner, "launch")
	suite.Require().Equal(suite.config.String(), created.Config)
	suite.Require().Contains(created.Escrow, types.DefaultDenom)

	submitted, err := ms.SubmitVerification(suite.f.Ctx, &types.MsgSubmitVerification{
		Claimant:  suite.claimant.String(),
		Config:    created.Config,
		RequestID: "req-1",
		Tracker:   types.TrackerAddress("req-1").String(),
		PostURL:   testPostURL,
		PostSize:  512,
	})
	suite.Require().NoError(err)
	suite.Require().Equal(types.LogAddress(suite.claimant, suite.config).String(), submitted.Log)

	job, ok := suite.f.Coprocessor.LastJob()
	suite.Require().True(ok)
	suite.Require().Equal(submitted.JobRef, job.Ref.String())

	res, err := cs.DeliverCallback(suite.f.Ctx, &types.MsgDeliverCallback{
		Log:      submitted.Log,
		Tracker:  job.Callback.Tracker.String(),
		Config:   created.Config,
		Claimant: suite.claimant.String(),
		JobRef:   submitted.JobRef,
		Payload:  payload(1, "content"),
	})
	suite.Require().NoError(err)
	suite.Require().True(res.Verified)
	requireAmount(suite.T(), testReward, suite.f.Balance(suite.claimant))

	inactive := false
	_, err = ms.UpdateConfig(suite.f.Ctx, &types.MsgUpdateConfig{Owner: suite.owner.String(), Label: "launch", Active: &inactive})
	suite.Require().NoError(err)
	suite.Require().False(suite.getConfig().Active)
}

func (suite *KeeperTestSuite) TestMsgServerRejectsInvalidMessages() {
	ms := keeper.NewMsgServerImpl(suite.keeper)
	suite.createConfig()

	_, err := ms.CreateConfig(suite.f.Ctx, &types.MsgCreateConfig{Owner: "bad", Label: "x", MaxClaimers: 1})
	suite.Require().ErrorIs(err, types.ErrInvalidRequest)

	_, err = ms.CreateConfig(suite.f.Ctx, &types.MsgCreateConfig{Owner: suite.owner.String(), Label: "much-too-long-label", MaxClaimers: 1})
	suite.Require().ErrorIs(err, types.ErrInvalidConfig)

	_, err = ms.UpdateConfig(suite.f.Ctx, &types.MsgUpdateConfig{Owner: suite.owner.String(), Label: "launch"})
	suite.Require().ErrorIs(err, types.ErrInvalidConfig)

	// another owner addresses a different config with the same label
	inactive := false
	_, err = ms.UpdateConfig(suite.f.Ctx, &types.MsgUpdateConfig{Owner: addr("mallory").String(), Label: "launch", Active: &inactive})
	suite.Require().ErrorIs(err, types.ErrConfigNotFound)

	msg := &types.MsgSubmitVerification{
		Claimant:      suite.claimant.String(),
		Config:        suite.config.String(),
		RequestID:     "req-1",
		Tracker:       types.TrackerAddress("req-1").String(),
		PostURL:       testPostURL,
		ContentDigest: hex.EncodeToString([]byte("short")),
	}
	_, err = ms.SubmitVerification(suite.f.Ctx, msg)
	suite.Require().ErrorIs(err, types.ErrInvalidRequest)

	_, err = ms.UpdateParams(suite.f.Ctx, &types.MsgUpdateParams{Authority: addr("mallory").String(), Params: types.DefaultParams()})
	suite.Require().ErrorIs(err, types.ErrUnauthorized)
	_, err = ms.UpdateParams(suite.f.Ctx, &types.MsgUpdateParams{Authority: suite.f.Authority, Params: types.DefaultParams()})
	suite.Require().NoError(err)
}

func (suite *KeeperTestSuite) TestCallbackServerWithoutCapability() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	job, _ := suite.f.Coprocessor.LastJob()

	cs := keeper.NewCallbackServerImpl(suite.keeper, nil)
	_, err := cs.DeliverCallback(suite.f.Ctx, &types.MsgDeliverCallback{
		Log:      job.Callback.Log.String(),
		Tracker:  job.Callback.Tracker.String(),
		Config:   job.Callback.Config.String(),
		Claimant: job.Callback.Claimant.String(),
		JobRef:   job.Ref.String(),
		Payload:  payload(1, "content"),
	})
	suite.Require().ErrorIs(err, types.ErrUnauthorized)
	suite.Require().True(suite.getLog(suite.claimant).IsPending())
}

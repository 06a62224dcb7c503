package keeper_test

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) TestCreateConfigEscrowsFunds() {
	cfg := suite.createConfig("zk", "rollup")

	suite.Require().Equal(types.ConfigAddress(suite.owner, "launch"), cfg)
	suite.Require().True(suite.f.Balance(suite.owner).IsZero())
	requireAmount(suite.T(), escrowFor(testReward, testMaxClaimers), suite.f.Balance(cfg))

	c := suite.getConfig()
	suite.Require().Equal(suite.owner, c.Owner)
	suite.Require().Equal([]string{"zk", "rollup"}, c.Keywords)
	suite.Require().True(c.Active)
	suite.Require().Zero(c.ClaimersCount)
	suite.Require().Equal(suite.f.Ctx.BlockHeight(), c.CreatedAt)

	owned, err := suite.keeper.ConfigsByOwner(suite.f.Ctx, suite.owner)
	suite.Require().NoError(err)
	suite.Require().Len(owned, 1)

	escrow, err := suite.keeper.EscrowBalance(suite.f.Ctx, cfg)
	suite.Require().NoError(err)
	suite.Require().Equal(types.DefaultDenom, escrow.Denom)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestCreateConfigFailures() {
	tests := []struct {
		name     string
		funds    uint64
		label    string
		keywords []string
		max      uint64
		err      error
	}{
		{"insufficient funds", escrowFor(testReward, testMaxClaimers) - 1, "launch", nil, testMaxClaimers, types.ErrInsufficientFunds},
		{"label too long", escrowFor(testReward, testMaxClaimers), "a-long-label", nil, testMaxClaimers, types.ErrInvalidConfig},
		{"keyword with comma", escrowFor(testReward, testMaxClaimers), "launch", []string{"zk,rollup"}, testMaxClaimers, types.ErrInvalidConfig},
		{"zero cap", escrowFor(testReward, testMaxClaimers), "launch", nil, 0, types.ErrInvalidConfig},
	}
	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.SetupTest()
			suite.f.Fund(suite.T(), suite.owner, tc.funds)

			_, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, tc.label, tc.keywords, testReward, tc.max)
			suite.Require().ErrorIs(err, tc.err)
			requireAmount(suite.T(), tc.funds, suite.f.Balance(suite.owner), "no funds move on failure")
		})
	}
}

func (suite *KeeperTestSuite) TestCreateConfigRejectsExisting() {
	suite.createConfig()
	suite.f.Fund(suite.T(), suite.owner, escrowFor(testReward, testMaxClaimers))

	_, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, "launch", nil, testReward, testMaxClaimers)
	suite.Require().ErrorIs(err, types.ErrConfigExists)

	// same label, different owner, is a different campaign
	other := addr("other-owner")
	suite.f.Fund(suite.T(), other, escrowFor(testReward, testMaxClaimers))
	cfg, err := suite.keeper.CreateConfig(suite.f.Ctx, other, "launch", nil, testReward, testMaxClaimers)
	suite.Require().NoError(err)
	suite.Require().NotEqual(suite.config, cfg)
}

func (suite *KeeperTestSuite) TestCreateConfigWithoutFundingSkipsTransfer() {
	params, err := suite.keeper.GetParams(suite.f.Ctx)
	suite.Require().NoError(err)
	params.StorageFloor = 0
	suite.Require().NoError(suite.keeper.SetParams(suite.f.Ctx, params))

	cfg, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, "free", nil, 0, 5)
	suite.Require().NoError(err)
	suite.Require().True(suite.f.Balance(cfg).IsZero())
}

func (suite *KeeperTestSuite) TestUpdateConfigPartial() {
	suite.createConfig("zk")
	before := suite.getConfig()

	lower := uint64(500)
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{RewardAmount: &lower}))

	after := suite.getConfig()
	suite.Require().Equal(lower, after.RewardAmount)
	suite.Require().Equal(before.MaxClaimers, after.MaxClaimers, "unset fields are unchanged")
	suite.Require().Equal(before.Active, after.Active)
	suite.Require().Equal(before.Keywords, after.Keywords)

	inactive := false
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &inactive}))
	suite.Require().False(suite.getConfig().Active)
	suite.Require().Equal(lower, suite.getConfig().RewardAmount)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestUpdateConfigGuards() {
	suite.createConfig()

	active := true
	inactive := false
	zero := uint64(0)
	raise := uint64(1_000_000)
	more := uint64(2_000)

	tests := []struct {
		name   string
		caller sdk.AccAddress
		upd    types.ConfigUpdate
		err    error
	}{
		{"not the owner", addr("mallory"), types.ConfigUpdate{Active: &inactive}, types.ErrUnauthorized},
		{"reward beyond escrow", suite.owner, types.ConfigUpdate{RewardAmount: &raise}, types.ErrInsufficientFunds},
		{"cap beyond escrow", suite.owner, types.ConfigUpdate{MaxClaimers: &more}, types.ErrInsufficientFunds},
		{"reactivate a full campaign", suite.owner, types.ConfigUpdate{MaxClaimers: &zero, Active: &active}, types.ErrMaxClaimersReached},
	}
	for _, tc := range tests {
		suite.Run(tc.name, func() {
			before := suite.getConfig()
			err := suite.keeper.UpdateConfig(suite.f.Ctx, tc.caller, suite.config, tc.upd)
			suite.Require().ErrorIs(err, tc.err)
			suite.Require().Equal(before, suite.getConfig())
		})
	}

	_, err := suite.keeper.GetConfig(suite.f.Ctx, addr("missing"))
	suite.Require().ErrorIs(err, types.ErrConfigNotFound)
	suite.Require().ErrorIs(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, addr("missing"), types.ConfigUpdate{Active: &inactive}), types.ErrConfigNotFound)
}

func (suite *KeeperTestSuite) TestUpdateConfigCapAtCountCloses() {
	suite.createConfig()
	suite.submit(suite.claimant, "req-1")
	_, err := suite.deliver(1)
	suite.Require().NoError(err)

	below := uint64(0)
	suite.Require().ErrorIs(
		suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{MaxClaimers: &below}),
		types.ErrInvalidConfig,
	)

	one := uint64(1)
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{MaxClaimers: &one}))
	c := suite.getConfig()
	suite.Require().False(c.Active, "reaching the cap closes the campaign")
	suite.Require().Equal(uint64(1), c.MaxClaimers)
	suite.requireInvariants()
}

func (suite *KeeperTestSuite) TestUpdateConfigKeepsPendingRewardsFunded() {
	suite.createConfig()
	sj := suite.submit(suite.claimant, "req-1")

	inactive := false
	escrow := escrowFor(testReward, testMaxClaimers)
	beyond := escrow + 1
	before := suite.getConfig()
	err := suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &inactive, RewardAmount: &beyond})
	suite.Require().ErrorIs(err, types.ErrInsufficientFunds)
	suite.Require().ErrorContains(err, "pending claims")
	suite.Require().Equal(before, suite.getConfig())

	// pausing at a reward the escrow still covers is fine
	covered := escrow
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{Active: &inactive, RewardAmount: &covered}))
	suite.requireInvariants()

	// and once paused the reward cannot outgrow the escrow either
	suite.Require().ErrorIs(
		suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{RewardAmount: &beyond}),
		types.ErrInsufficientFunds,
	)

	// the job in flight settles at the reward it was left with
	_, err = suite.deliver(1)
	suite.Require().NoError(err)
	requireAmount(suite.T(), covered, suite.f.Balance(suite.claimant))
	l := suite.getLog(suite.claimant)
	suite.Require().True(l.IsVerified)
	suite.Require().False(l.IsPending())
	suite.Require().Equal(sj.Log, l.Address())
	suite.requireInvariants()

	// nothing in flight: a paused campaign may carry any reward
	suite.Require().NoError(suite.keeper.UpdateConfig(suite.f.Ctx, suite.owner, suite.config, types.ConfigUpdate{RewardAmount: &beyond}))
}

package keeper_test

import (
	"github.com/cosmos/cosmos-sdk/types/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/proofofpost/pop/x/postproof/keeper"
	"github.com/proofofpost/pop/x/postproof/types"
)

func (suite *KeeperTestSuite) TestQueryParams() {
	qs := keeper.NewQueryServerImpl(suite.keeper)
	res, err := qs.Params(suite.f.Ctx, &types.QueryParamsRequest{})
	suite.Require().NoError(err)
	suite.Require().Equal(types.DefaultParams(), res.Params)

	_, err = qs.Params(suite.f.Ctx, nil)
	suite.Require().Equal(codes.InvalidArgument, status.Code(err))
}

func (suite *KeeperTestSuite) TestQueryConfig() {
	qs := keeper.NewQueryServerImpl(suite.keeper)
	suite.createConfig("zk")

	res, err := qs.Config(suite.f.Ctx, &types.QueryConfigRequest{Address: suite.config.String()})
	suite.Require().NoError(err)
	suite.Require().Equal("launch", res.Config.Label)
	suite.Require().Equal(amount(escrowFor(testReward, testMaxClaimers)).String()+types.DefaultDenom, res.Escrow)

	_, err = qs.Config(suite.f.Ctx, &types.QueryConfigRequest{Address: addr("missing").String()})
	suite.Require().Equal(codes.NotFound, status.Code(err))
	suite.Require().ErrorIs(err, types.ErrConfigNotFound)
	_, err = qs.Config(suite.f.Ctx, &types.QueryConfigRequest{Address: "bogus"})
	suite.Require().Equal(codes.InvalidArgument, status.Code(err))
}

func (suite *KeeperTestSuite) TestQueryConfigsPaginates() {
	qs := keeper.NewQueryServerImpl(suite.keeper)
	suite.f.Fund(suite.T(), suite.owner, 3*escrowFor(testReward, 1))
	for _, label := range []string{"a", "b", "c"} {
		_, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, label, nil, testReward, 1)
		suite.Require().NoError(err)
	}
	other := addr("other")
	suite.f.Fund(suite.T(), other, escrowFor(testReward, 1))
	_, err := suite.keeper.CreateConfig(suite.f.Ctx, other, "a", nil, testReward, 1)
	suite.Require().NoError(err)

	all, err := qs.Configs(suite.f.Ctx, &types.QueryConfigsRequest{})
	suite.Require().NoError(err)
	suite.Require().Len(all.Configs, 4)

	page, err := qs.Configs(suite.f.Ctx, &types.QueryConfigsRequest{
		Owner:      suite.owner.String(),
		Pagination: &query.PageRequest{Limit: 2, CountTotal: true},
	})
	suite.Require().NoError(err)
	suite.Require().Len(page.Configs, 2)
	suite.Require().Equal(uint64(3), page.Pagination.Total)
	suite.Require().NotEmpty(page.Pagination.NextKey)

	rest, err := qs.Configs(suite.f.Ctx, &types.QueryConfigsRequest{
		Owner:      suite.owner.String(),
		Pagination: &query.PageRequest{Key: page.Pagination.NextKey},
	})
	suite.Require().NoError(err)
	suite.Require().Len(rest.Configs, 1)
	for _, c := range append(page.Configs, rest.Configs...) {
		suite.Require().Equal(suite.owner, c.Owner)
	}
}

func (suite *KeeperTestSuite) TestQueryLogsAndTracker() {
	qs := keeper.NewQueryServerImpl(suite.keeper)
	suite.createConfig()
	sj := suite.submit(suite.claimant, "req-1")
	suite.submit(addr("bob"), "req-2")

	log, err := qs.VerificationLog(suite.f.Ctx, &types.QueryVerificationLogRequest{
		Claimant: suite.claimant.String(),
		Config:   suite.config.String(),
	})
	suite.Require().NoError(err)
	suite.Require().Equal(sj.Log.String(), log.Address)
	suite.Require().Equal(sj.JobRef, log.Log.CurrentExecution)

	_, err = qs.VerificationLog(suite.f.Ctx, &types.QueryVerificationLogRequest{
		Claimant: addr("nobody").String(),
		Config:   suite.config.String(),
	})
	suite.Require().Equal(codes.NotFound, status.Code(err))
	suite.Require().ErrorIs(err, types.ErrLogNotFound)

	logs, err := qs.LogsByConfig(suite.f.Ctx, &types.QueryLogsByConfigRequest{Config: suite.config.String()})
	suite.Require().NoError(err)
	suite.Require().Len(logs.Logs, 2)

	tracker, err := qs.Tracker(suite.f.Ctx, &types.QueryTrackerRequest{RequestID: "req-1"})
	suite.Require().NoError(err)
	suite.Require().Equal(sj.JobRef, tracker.Tracker.ExecutionAccount)
	suite.Require().Equal(types.TrackerAddress("req-1").String(), tracker.Address)

	_, err = qs.Tracker(suite.f.Ctx, &types.QueryTrackerRequest{RequestID: "unknown"})
	suite.Require().Equal(codes.NotFound, status.Code(err))
	suite.Require().ErrorIs(err, types.ErrTrackerNotFound)
	_, err = qs.Tracker(suite.f.Ctx, &types.QueryTrackerRequest{})
	suite.Require().Equal(codes.InvalidArgument, status.Code(err))
}

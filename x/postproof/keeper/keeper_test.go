package keeper_test

import (
	"crypto/sha256"
	"strings"
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	keepertest "github.com/proofofpost/pop/testutil/keeper"
	"github.com/proofofpost/pop/x/postproof/keeper"
	"github.com/proofofpost/pop/x/postproof/types"
)

const (
	testReward      = uint64(1_000)
	testMaxClaimers = uint64(3)
	testPostURL     = "https://public.api.bsky.app/xrpc/app.bsky.feed.getPosts?uris=at://did:plc:abc/app.bsky.feed.post/1"
)

type KeeperTestSuite struct {
	suite.Suite
	f      *keepertest.PostproofFixture
	keeper *keeper.Keeper

	owner    sdk.AccAddress
	claimant sdk.AccAddress
	config   sdk.AccAddress
}

func (suite *KeeperTestSuite) SetupTest() {
	suite.f = keepertest.NewPostproofFixture(suite.T())
	suite.keeper = suite.f.Keeper
	suite.owner = addr("owner")
	suite.claimant = addr("claimant")
	suite.config = nil
}

func TestKeeperTestSuite(t *testing.T) {
	suite.Run(t, new(KeeperTestSuite))
}

func addr(name string) sdk.AccAddress {
	sum := sha256.Sum256([]byte(name))
	return sdk.AccAddress(sum[:20])
}

// escrowFor is what CreateConfig moves for reward and max under default params.
func escrowFor(reward, max uint64) uint64 {
	return types.DefaultStorageFloor + reward*max
}

// createConfig funds the owner and opens the default test campaign.
func (suite *KeeperTestSuite) createConfig(keywords ...string) sdk.AccAddress {
	suite.f.Fund(suite.T(), suite.owner, escrowFor(testReward, testMaxClaimers))
	cfg, err := suite.keeper.CreateConfig(suite.f.Ctx, suite.owner, "launch", keywords, testReward, testMaxClaimers)
	suite.Require().NoError(err)
	suite.config = cfg
	return cfg
}

func (suite *KeeperTestSuite) request(claimant sdk.AccAddress, requestID string) types.VerificationRequest {
	return types.VerificationRequest{
		Config:    suite.config,
		Claimant:  claimant,
		RequestID: requestID,
		Tracker:   types.TrackerAddress(requestID),
		PostURL:   testPostURL,
		PostSize:  512,
	}
}

func (suite *KeeperTestSuite) submit(claimant sdk.AccAddress, requestID string) types.SubmittedJob {
	sj, err := suite.keeper.SubmitVerification(suite.f.Ctx, suite.request(claimant, requestID))
	suite.Require().NoError(err)
	return sj
}

func payload(verdict byte, content string) []byte {
	digest := sha256.Sum256([]byte(content))
	return append([]byte{verdict}, digest[:]...)
}

// deliver settles the most recent job with the given verdict.
func (suite *KeeperTestSuite) deliver(verdict byte) (types.JobOutput, error) {
	job, ok := suite.f.Coprocessor.LastJob()
	suite.Require().True(ok)
	return suite.keeper.OnJobResult(suite.f.Ctx, suite.f.Capability, job.Result(payload(verdict, "content")))
}

func (suite *KeeperTestSuite) getConfig() types.CampaignConfig {
	c, err := suite.keeper.GetConfig(suite.f.Ctx, suite.config)
	suite.Require().NoError(err)
	return c
}

func (suite *KeeperTestSuite) getLog(claimant sdk.AccAddress) types.VerificationLog {
	l, found, err := suite.keeper.GetVerificationLog(suite.f.Ctx, types.LogAddress(claimant, suite.config))
	suite.Require().NoError(err)
	suite.Require().True(found)
	return l
}

func (suite *KeeperTestSuite) requireInvariants() {
	msg, broken := keeper.AllInvariants(*suite.keeper)(suite.f.Ctx)
	suite.Require().False(broken, msg)
}

func (suite *KeeperTestSuite) TestBindCoprocessorOnce() {
	_, err := suite.keeper.BindCoprocessor(keepertest.NewMockCoprocessor())
	suite.Require().Error(err)
}

func (suite *KeeperTestSuite) TestParamsDefaultsAndAuthority() {
	params, err := suite.keeper.GetParams(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(types.DefaultParams(), params)

	params.VerificationCooldown = 5
	err = suite.keeper.UpdateParams(suite.f.Ctx, addr("mallory").String(), params)
	suite.Require().ErrorIs(err, types.ErrUnauthorized)

	suite.Require().NoError(suite.keeper.UpdateParams(suite.f.Ctx, suite.f.Authority, params))
	got, err := suite.keeper.GetParams(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(5), got.VerificationCooldown)

	params.JobDeadlineHorizon = 0
	suite.Require().ErrorIs(suite.keeper.UpdateParams(suite.f.Ctx, suite.f.Authority, params), types.ErrInvalidParams)
}

func (suite *KeeperTestSuite) TestGenesisRoundTrip() {
	suite.createConfig("zk")
	suite.submit(suite.claimant, "req-1")

	exported, err := suite.keeper.ExportGenesis(suite.f.Ctx)
	suite.Require().NoError(err)
	suite.Require().Len(exported.Configs, 1)
	suite.Require().Len(exported.Logs, 1)
	suite.Require().Len(exported.Trackers, 1)
	suite.Require().Equal("req-1", exported.Trackers[0].RequestID)
	suite.Require().Equal(uint64(2), exported.NextJobNonce)

	fresh := keepertest.NewPostproofFixture(suite.T())
	suite.Require().NoError(fresh.Keeper.InitGenesis(fresh.Ctx, *exported))
	reexported, err := fresh.Keeper.ExportGenesis(fresh.Ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(exported, reexported)

	msg, broken := keeper.PendingIndexInvariant(*fresh.Keeper)(fresh.Ctx)
	suite.Require().False(broken, msg)
}

func (suite *KeeperTestSuite) TestInitGenesisRejectsInvalidState() {
	gs := types.DefaultGenesis()
	gs.NextJobNonce = 0
	suite.Require().Error(suite.keeper.InitGenesis(suite.f.Ctx, *gs))
}

func amount(v uint64) math.Int {
	return math.NewIntFromUint64(v)
}

// requireAmount compares by value. Equal math.Int amounts may hold different
// big.Int representations, zero in particular.
func requireAmount(t require.TestingT, want uint64, got math.Int, msg ...string) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	require.True(t, amount(want).Equal(got), "%s want %d, got %s", strings.Join(msg, " "), want, got)
}

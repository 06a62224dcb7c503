package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/proofofpost/pop/app"
	keepertest "github.com/proofofpost/pop/testutil/keeper"
	"github.com/proofofpost/pop/x/postproof/coprocessor"
	"github.com/proofofpost/pop/x/postproof/types"
)

const reward = uint64(5_000)

func getPostsBody(text string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"posts": []map[string]interface{}{{
			"uri":       "at://did:plc:abc/app.bsky.feed.post/1",
			"cid":       "bafyreib",
			"author":    map[string]string{"did": "did:plc:abc", "handle": "alice.bsky.social"},
			"record":    map[string]string{"$type": "app.bsky.feed.post", "createdAt": "2025-01-01T00:00:00Z", "text": text},
			"indexedAt": "2025-01-01T00:00:01Z",
		}},
	})
	return body
}

type LedgerTestSuite struct {
	suite.Suite
	ctx         context.Context
	ledger      *app.Ledger
	coprocessor *coprocessor.Coprocessor
	receipts    chan coprocessor.Receipt
	content     *httptest.Server
	body        []byte

	owner    sdk.AccAddress
	claimant sdk.AccAddress
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	app.SetConfig()
	suite.ctx = context.Background()
	suite.owner = sdk.AccAddress([]byte("owner_______________"))
	suite.claimant = sdk.AccAddress([]byte("claimant____________"))

	suite.body = getPostsBody("We shipped a ZK rollup today")
	suite.content = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(suite.body)
	}))
	suite.T().Cleanup(suite.content.Close)

	cfg := coprocessor.DefaultConfig()
	cfg.FetchRate = 1000
	cfg.FetchBurst = 1000
	cfg.AllowedSchemes = []string{"http"}
	cfg.AllowedHosts = []string{"127.0.0.1"}
	cop, err := coprocessor.New(cfg, log.NewNopLogger())
	suite.Require().NoError(err)
	suite.coprocessor = cop
	suite.receipts = make(chan coprocessor.Receipt, 8)
	cop.OnReceipt(func(r coprocessor.Receipt) { suite.receipts <- r })

	gcfg := app.DefaultGenesisConfig()
	gcfg.Accounts = []app.GenesisAccount{{Address: suite.owner.String(), Amount: 10_000_000}}
	genesis, err := app.NewGenesisStateFromConfig(gcfg)
	suite.Require().NoError(err)

	ledger, err := app.NewLedger(app.DefaultLedgerConfig(), log.NewNopLogger(), cop, genesis)
	suite.Require().NoError(err)
	suite.ledger = ledger
	suite.T().Cleanup(func() { _ = ledger.Close() })

	cop.Attach(ledger, ledger.Capability())
	suite.Require().NoError(cop.Start(suite.ctx))
	suite.T().Cleanup(cop.Stop)
}

func (suite *LedgerTestSuite) createConfig(keywords ...string) string {
	resp, err := suite.ledger.CreateConfig(suite.ctx, &types.MsgCreateConfig{
		Owner:        suite.owner.String(),
		Label:        "launch",
		Keywords:     keywords,
		RewardAmount: reward,
		MaxClaimers:  2,
	})
	suite.Require().NoError(err)
	return resp.Config
}

func (suite *LedgerTestSuite) submit(config string) *types.MsgSubmitVerificationResponse {
	resp, err := suite.ledger.SubmitVerification(suite.ctx, &types.MsgSubmitVerification{
		Claimant:  suite.claimant.String(),
		Config:    config,
		RequestID: "req-1",
		Tracker:   types.TrackerAddress("req-1").String(),
		PostURL:   suite.content.URL + "/xrpc/app.bsky.feed.getPosts?uris=at://did:plc:abc/app.bsky.feed.post/1",
		PostSize:  uint64(len(suite.body)),
	})
	suite.Require().NoError(err)
	return resp
}

func (suite *LedgerTestSuite) waitReceipt() coprocessor.Receipt {
	select {
	case r := <-suite.receipts:
		return r
	case <-time.After(5 * time.Second):
		suite.FailNow("timed out waiting for the coprocessor")
		return coprocessor.Receipt{}
	}
}

func (suite *LedgerTestSuite) TestVerifiedPostIsRewarded() {
	config := suite.createConfig("rollup")
	submitted := suite.submit(config)

	r := suite.waitReceipt()
	suite.Require().NoError(r.Err)
	suite.Require().True(r.Delivered)
	suite.Require().Equal(submitted.JobRef, r.JobRef.String())

	balance, err := suite.ledger.Balance(suite.claimant)
	suite.Require().NoError(err)
	suite.Require().Equal(math.NewIntFromUint64(reward), balance.Amount)

	log, err := suite.ledger.VerificationLog(suite.ctx, &types.QueryVerificationLogRequest{Claimant: suite.claimant.String(), Config: config})
	suite.Require().NoError(err)
	suite.Require().True(log.Log.IsVerified)
	suite.Require().False(log.Log.IsPending())

	height, err := suite.ledger.ProduceBlock(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(int64(1), height)
	suite.Require().Equal(int64(2), suite.ledger.CurrentHeight())
}

func (suite *LedgerTestSuite) TestRejectedPostPaysNothing() {
	config := suite.createConfig("defi")
	suite.submit(config)

	r := suite.waitReceipt()
	suite.Require().True(r.Delivered)
	suite.Require().Equal(byte(0), r.Output.Verdict)

	balance, err := suite.ledger.Balance(suite.claimant)
	suite.Require().NoError(err)
	suite.Require().True(balance.IsZero())

	cfg, err := suite.ledger.Config(suite.ctx, &types.QueryConfigRequest{Address: config})
	suite.Require().NoError(err)
	suite.Require().Zero(cfg.Config.ClaimersCount)
}

func (suite *LedgerTestSuite) TestFailedOperationLeavesNoTrace() {
	_, err := suite.ledger.CreateConfig(suite.ctx, &types.MsgCreateConfig{
		Owner:        suite.claimant.String(),
		Label:        "broke",
		RewardAmount: reward,
		MaxClaimers:  1,
	})
	suite.Require().ErrorIs(err, types.ErrInsufficientFunds)

	configs, err := suite.ledger.Configs(suite.ctx, &types.QueryConfigsRequest{})
	suite.Require().NoError(err)
	suite.Require().Empty(configs.Configs)
}

func (suite *LedgerTestSuite) TestFaucet() {
	suite.Require().NoError(suite.ledger.Fund(suite.ctx, suite.claimant, 42))
	balance, err := suite.ledger.Balance(suite.claimant)
	suite.Require().NoError(err)
	suite.Require().Equal(math.NewInt(42), balance.Amount)

	suite.Require().ErrorIs(suite.ledger.Fund(suite.ctx, suite.claimant, 0), app.ErrFaucetLimit)
	suite.Require().ErrorIs(suite.ledger.Fund(suite.ctx, suite.claimant, app.DefaultLedgerConfig().FaucetLimit+1), app.ErrFaucetLimit)
}

func (suite *LedgerTestSuite) TestExportedGenesisIsValid() {
	config := suite.createConfig("rollup")
	suite.submit(config)
	suite.waitReceipt()

	genesis, err := suite.ledger.ExportGenesis()
	suite.Require().NoError(err)
	suite.Require().NoError(genesis.Validate())

	pg, err := genesis.PostproofGenesis()
	suite.Require().NoError(err)
	suite.Require().Len(pg.Configs, 1)
	suite.Require().Equal(uint64(1), pg.Configs[0].ClaimersCount)
}

func (suite *LedgerTestSuite) TestClosedLedger() {
	suite.coprocessor.Stop()
	suite.Require().NoError(suite.ledger.Close())
	_, err := suite.ledger.Params(suite.ctx)
	suite.Require().ErrorIs(err, app.ErrLedgerClosed)
	_, err = suite.ledger.ProduceBlock(suite.ctx)
	suite.Require().ErrorIs(err, app.ErrLedgerClosed)
}

func TestLedgerExpiresAbandonedJobs(t *testing.T) {
	app.SetConfig()
	ctx := context.Background()
	owner := sdk.AccAddress([]byte("owner_______________"))
	claimant := sdk.AccAddress([]byte("claimant____________"))

	gcfg := app.DefaultGenesisConfig()
	gcfg.JobDeadlineHorizon = 2
	gcfg.PendingJobTimeout = 1
	gcfg.Accounts = []app.GenesisAccount{{Address: owner.String(), Amount: 10_000_000}}
	genesis, err := app.NewGenesisStateFromConfig(gcfg)
	require.NoError(t, err)

	mock := keepertest.NewMockCoprocessor()
	ledger, err := app.NewLedger(app.DefaultLedgerConfig(), log.NewNopLogger(), mock, genesis)
	require.NoError(t, err)
	defer ledger.Close()

	created, err := ledger.CreateConfig(ctx, &types.MsgCreateConfig{Owner: owner.String(), Label: "l", RewardAmount: 1, MaxClaimers: 1})
	require.NoError(t, err)
	_, err = ledger.SubmitVerification(ctx, &types.MsgSubmitVerification{
		Claimant:  claimant.String(),
		Config:    created.Config,
		RequestID: "r",
		Tracker:   types.TrackerAddress("r").String(),
		PostURL:   "https://example.com/post",
		PostSize:  10,
	})
	require.NoError(t, err)

	// deadline is height 3; block 5 is the first to end past 3 + 1
	for i := 0; i < 5; i++ {
		_, err = ledger.ProduceBlock(ctx)
		require.NoError(t, err)
	}
	resp, err := ledger.VerificationLog(ctx, &types.QueryVerificationLogRequest{Claimant: claimant.String(), Config: created.Config})
	require.NoError(t, err)
	if resp.Log.IsPending() {
		t.Fatalf("log still pending at height %d", ledger.CurrentHeight())
	}

	job, _ := mock.LastJob()
	_, err = ledger.DeliverJobResult(ctx, ledger.Capability(), job.Result(make([]byte, types.JobOutputSize)))
	if err == nil {
		t.Fatal("late result was accepted")
	}
}

func TestLedgerPersistsAcrossRestart(t *testing.T) {
	app.SetConfig()
	ctx := context.Background()
	owner := sdk.AccAddress([]byte("owner_______________"))

	cfg := app.DefaultLedgerConfig()
	cfg.DBBackend = string(dbm.GoLevelDBBackend)
	cfg.DBDir = t.TempDir()

	gcfg := app.DefaultGenesisConfig()
	gcfg.Accounts = []app.GenesisAccount{{Address: owner.String(), Amount: 10_000_000}}
	genesis, err := app.NewGenesisStateFromConfig(gcfg)
	require.NoError(t, err)

	ledger, err := app.NewLedger(cfg, log.NewNopLogger(), keepertest.NewMockCoprocessor(), genesis)
	require.NoError(t, err)
	created, err := ledger.CreateConfig(ctx, &types.MsgCreateConfig{Owner: owner.String(), Label: "keep", RewardAmount: 10, MaxClaimers: 3})
	require.NoError(t, err)
	_, err = ledger.ProduceBlock(ctx)
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	reopened, err := app.NewLedger(cfg, log.NewNopLogger(), keepertest.NewMockCoprocessor(), nil)
	require.NoError(t, err)
	defer reopened.Close()

	if h := reopened.CurrentHeight(); h != 2 {
		t.Fatalf("height after restart = %d, want 2", h)
	}
	resp, err := reopened.Config(ctx, &types.QueryConfigRequest{Address: created.Config})
	require.NoError(t, err)
	if resp.Config.Label != "keep" {
		t.Fatalf("unexpected config %+v", resp.Config)
	}
}

//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rossigee/episode-catalog/internal/api"
	"github.com/rossigee/episode-catalog/internal/ingest"
	"github.com/rossigee/episode-catalog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ChaosTestSuite checks the catalog under concurrent load and bad input
type ChaosTestSuite struct {
	suite.Suite
	dir    string
	store  *storage.Store
	server *httptest.Server
}

func (suite *ChaosTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	store, err := storage.NewStore(filepath.Join(suite.dir, "catalog.db"))
	require.NoError(suite.T(), err)
	suite.store = store

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.SetupRoutes(router, api.NewHandler(store, "chaos"))
	suite.server = httptest.NewServer(router)
}

func (suite *ChaosTestSuite) TearDownTest() {
	suite.server.Close()
	_ = suite.store.Close()
}

func (suite *ChaosTestSuite) writeFixtures(n int) []string {
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		content, err := metadataDocument(fmt.Sprintf("Chaos%d-v1", i), 50)
		require.NoError(suite.T(), err)
		path := filepath.Join(suite.dir, fmt.Sprintf("maniskill_metadata%d.json", i+1))
		require.NoError(suite.T(), os.WriteFile(path, content, 0o600))
		paths = append(paths, path)
	}
	return paths
}

// TestConcurrentReadsDuringIngest hammers the API while files are ingested
func (suite *ChaosTestSuite) TestConcurrentReadsDuringIngest() {
	paths := suite.writeFixtures(20)

	const numReaders = 5
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, numReaders)
	done := make(chan struct{})

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				resp, err := http.Get(suite.server.URL + "/api/v1/report")
				if err != nil {
					errs <- err
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("unexpected status: %d", resp.StatusCode)
					return
				}
			}
		}()
	}

	summary := ingest.NewManager(suite.store).Run(ctx, paths)
	close(done)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(suite.T(), err)
	}
	assert.Equal(suite.T(), 20, summary.Ingested)
	assert.Equal(suite.T(), 20*50, summary.Episodes)
}

// TestCorruptFilesMixedIn ingests truncated and binary files alongside good ones
func (suite *ChaosTestSuite) TestCorruptFilesMixedIn() {
	paths := suite.writeFixtures(3)

	truncated := filepath.Join(suite.dir, "truncated.json")
	require.NoError(suite.T(), os.WriteFile(truncated, []byte(`{"env_info": {"env_id": "Trunc`), 0o600))
	binary := filepath.Join(suite.dir, "binary.json")
	require.NoError(suite.T(), os.WriteFile(binary, []byte{0x00, 0xff, 0xfe, 0x7b}, 0o600))

	mixed := []string{paths[0], truncated, paths[1], binary, paths[2]}
	summary := ingest.NewManager(suite.store).Run(context.Background(), mixed)

	assert.Equal(suite.T(), 3, summary.Ingested)
	assert.Equal(suite.T(), 2, summary.Failed)

	envIDs, err := suite.store.ListEnvIDs(context.Background())
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"Chaos0-v1", "Chaos1-v1", "Chaos2-v1"}, envIDs)
}

// TestCancelledIngest stops between files when the context is cancelled
func (suite *ChaosTestSuite) TestCancelledIngest() {
	paths := suite.writeFixtures(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := ingest.NewManager(suite.store).Run(ctx, paths)
	assert.Empty(suite.T(), summary.Results)

	envIDs, err := suite.store.ListEnvIDs(context.Background())
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), envIDs)
}

func TestChaosTestSuite(t *testing.T) {
	suite.Run(t, new(ChaosTestSuite))
}

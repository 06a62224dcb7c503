package api

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/auth/challenge", s.handleIssueChallenge)
		api.POST("/auth/token", s.handleIssueToken)
		api.POST("/faucet", s.handleFaucet)
		api.GET("/params", s.handleGetParams)
		api.GET("/balances/:address", s.handleGetBalance)

		// Campaign routes (public read, owner write)
		configs := api.Group("/configs")
		{
			configs.GET("", s.handleListConfigs)
			configs.GET("/:address", s.handleGetConfig)
			configs.GET("/:address/logs", s.handleListLogs)

			owned := configs.Group("")
			owned.Use(s.AuthMiddleware(RoleUser))
			{
				owned.POST("", s.handleCreateConfig)
				owned.PATCH("/:owner/:label", s.handleUpdateConfig)
			}
		}

		api.GET("/logs/:claimant/:config", s.handleGetLog)
		api.GET("/trackers/:request_id", s.handleGetTracker)

		api.POST("/verifications", s.AuthMiddleware(RoleUser), s.handleSubmitVerification)
		api.POST("/callbacks", s.AuthMiddleware(RoleCoprocessor), s.handleDeliverCallback)
	}
}

package downloader

import (
	"github.com/cavaliercoder/grab"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

type grabClient struct {
	client      *grab.Client
	concurrency int
	log         *logger.Logger
}

func newGrabClient(log *logger.Logger) grabClient {
	return grabClient{client: grab.NewClient(), concurrency: 5, log: log}
}

func (g grabClient) request(dest string, urls ...Download) (files []string, fails []string) {
	reqs := make([]*grab.Request, 0, len(urls))
	key := map[string]string{}
	for _, u := range urls {
		req, err := grab.NewRequest(dest, u.Address)
		if err != nil {
			g.log.Error().Err(err).Msgf("couldn't make a request for %v", u.Address)
			fails = append(fails, u.Key)
			continue
		}
		key[u.Address] = u.Key
		reqs = append(reqs, req)
	}

	for resp := range g.client.DoBatch(g.concurrency, reqs...) {
		k := key[resp.Request.URL().String()]
		if err := resp.Err(); err != nil {
			g.log.Error().Err(err).Msgf("download %v failed", k)
			fails = append(fails, k)
			continue
		}
		g.log.Debug().Msgf("downloaded [%v] %v", resp.HTTPResponse.Status, resp.Filename)
		files = append(files, resp.Filename)
	}
	return
}

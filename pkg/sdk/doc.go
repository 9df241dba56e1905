// Package audiosearch is an in-process Go client for audio similarity search
// backed by Valkey or Redis with search modules.
//
// Recordings are cut into overlapping windows, each window is embedded with a
// log-mel front end and stored as a vector. A search embeds the query windows,
// retrieves the nearest stored windows and ranks the recordings they belong to.
//
//	client, _ := audiosearch.New(ctx,
//	    audiosearch.WithValkey("localhost:6379", ""),
//	    audiosearch.WithFileRoot("toy-data"),
//	)
//	defer client.Close()
//
//	_, _ = client.Index(ctx, []audiosearch.Document{{ID: "song-1", URI: "song-1.mp3"}})
//	hits, _ := client.Search(ctx, []audiosearch.Document{{URI: "query.wav"}},
//	    audiosearch.TopK(5), audiosearch.Ranking(audiosearch.RankMin),
//	)
//	for _, m := range hits[0].Matches {
//	    fmt.Println(m.ID, m.Scores["cosine"], m.BegInMs, m.EndInMs)
//	}
package audiosearch
